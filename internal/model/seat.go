package model

import (
	"fmt"
	"strconv"
	"strings"
)

// SeatState describes the availability of a seat within one showtime.
// A seat is FREE until a reservation session holds it, HELD while a
// session owns it, and BOOKED once a finalized booking has claimed it.
// A seat is held or booked for at most one session at any instant.
type SeatState string

const (
	SeatFree   SeatState = "FREE"   // available for selection
	SeatHeld   SeatState = "HELD"   // temporarily owned by a reservation session
	SeatBooked SeatState = "BOOKED" // permanently claimed by a finalized booking
)

// SeatType categorises a seat for pricing and rendering purposes.
type SeatType string

const (
	SeatRegular SeatType = "REGULAR"
	SeatCouple  SeatType = "COUPLE"
	SeatVIP     SeatType = "VIP"
)

// SeatID identifies a seat inside a showtime by its row label and
// number.  The canonical string form is the row label immediately
// followed by the number, e.g. "A1" or "F12".  SeatID is a value type
// and safe to use as a map key.
type SeatID struct {
	Row    string // row label, one or more upper-case letters
	Number uint32 // seat number within the row, starting at 1
}

// Label renders the canonical "A1" form of the seat identity.
func (s SeatID) Label() string { return fmt.Sprintf("%s%d", s.Row, s.Number) }

// ParseSeatID parses the canonical "A1" label form.  The row label is
// the leading run of letters (upper-cased) and the remainder must be a
// positive integer.  An error is returned for empty or malformed input.
func ParseSeatID(label string) (SeatID, error) {
	label = strings.TrimSpace(strings.ToUpper(label))
	i := 0
	for i < len(label) && label[i] >= 'A' && label[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(label) {
		return SeatID{}, fmt.Errorf("invalid seat label %q", label)
	}
	n, err := strconv.ParseUint(label[i:], 10, 32)
	if err != nil || n == 0 {
		return SeatID{}, fmt.Errorf("invalid seat label %q", label)
	}
	return SeatID{Row: label[:i], Number: uint32(n)}, nil
}

// SeatInfo describes one seat of a showtime layout as served by the
// catalog: identity, type and the display price attached to the seat.
//
// Fields:
//  ID         – row/number identity within the showtime.
//  Type       – REGULAR, COUPLE or VIP.
//  PriceCents – display price for this seat in minor currency units.
type SeatInfo struct {
	ID         SeatID   // seat identity
	Type       SeatType // seat category
	PriceCents int64    // display price in minor units
}

// SeatStatus is a read-only snapshot row: the seat layout entry plus
// its current availability.  Snapshots are what concurrent customers
// see, so HELD must be distinguishable from BOOKED.
type SeatStatus struct {
	ID         SeatID    `json:"-"`
	Label      string    `json:"label"`
	Type       SeatType  `json:"type"`
	PriceCents int64     `json:"price_cents"`
	State      SeatState `json:"state"`
}
