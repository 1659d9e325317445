package model

import (
	"math"
	"time"
)

// Showtime represents a scheduled screening together with everything
// the checkout engine needs to price and seat a reservation: the seat
// layout, the purchasable ticket types and the concession products.
// It is served read-only by the catalog repository.
//
// Fields:
//  ID             – primary key identifier.
//  MovieTitle     – title of the movie being screened.
//  HallName       – display name of the hall.
//  StartsAt       – when the screening begins.
//  EndsAt         – when the screening ends (after StartsAt).
//  BasePriceCents – base ticket price in minor units; multiplied per
//                   ticket type unless a fixed price overrides it.
//  Seats          – full seat layout with per-seat display prices.
//  TicketTypes    – purchasable ticket types for this showtime.
//  Products       – concession products offered alongside tickets.
type Showtime struct {
	ID             uint64
	MovieTitle     string
	HallName       string
	StartsAt       time.Time
	EndsAt         time.Time
	BasePriceCents int64
	Seats          []SeatInfo
	TicketTypes    []TicketType
	Products       []Product
}

// TicketType is a purchasable ticket category (adult, child, member,
// ...).  Its unit price is FixedPriceCents when set, otherwise the
// showtime base price scaled by Multiplier and rounded to the nearest
// minor currency unit.
type TicketType struct {
	ID              string   // ticket type identifier
	Name            string   // display name
	Multiplier      float64  // applied to the showtime base price
	FixedPriceCents *int64   // overrides the multiplier when non-nil
}

// UnitPriceCents resolves the price of one ticket of this type against
// the given base price.
func (t TicketType) UnitPriceCents(basePriceCents int64) int64 {
	if t.FixedPriceCents != nil {
		return *t.FixedPriceCents
	}
	return int64(math.Round(float64(basePriceCents) * t.Multiplier))
}

// Product is a concession item (popcorn, drinks, combos).
type Product struct {
	ID         string // product identifier
	Name       string // display name
	PriceCents int64  // unit price in minor units
}

// TicketSelection maps a ticket type identifier to a quantity.  All
// quantities are non-negative; the sum across types must equal the
// number of seats in the reservation before the session may advance
// past seat selection.
type TicketSelection map[string]uint32

// Total returns the summed quantity across all ticket types.
func (s TicketSelection) Total() uint32 {
	var n uint32
	for _, q := range s {
		n += q
	}
	return n
}

// ProductSelection maps a product identifier to a quantity.  It is
// independent of the seat count and unbounded by the engine.
type ProductSelection map[string]uint32
