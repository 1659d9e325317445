// Package inventory holds the authoritative in-memory seat table for
// every showtime the checkout engine is serving.  All seat mutation
// goes through TryHold, Release, Commit and Rollback so that the
// "at most one holder" invariant is enforced in exactly one place.
// Operations on a showtime are serialized by a per-store mutex, which
// makes TryHold linearizable: of two racing holds for the same seat,
// exactly one succeeds.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// ErrShowtimeUnknown is returned when the showtime has not been
// registered with the store.  Callers should seed it from the catalog
// first via Register.
var ErrShowtimeUnknown = errors.New("showtime not registered in inventory")

// ErrSeatUnknown is returned when a requested seat does not exist in
// the showtime's layout.
var ErrSeatUnknown = errors.New("seat not in showtime layout")

// ErrCountMismatch is returned by TryHold when the number of seats
// requested does not equal the ticket total passed alongside.  The
// hold is rejected before any seat state is examined.
var ErrCountMismatch = errors.New("seat count does not match ticket count")

// ErrSeatNotHeldBySession is returned by Commit when a seat is not
// held by the requesting session.  It signals a stale or expired
// session trying to finalize after losing its hold.
var ErrSeatNotHeldBySession = errors.New("seat not held by session")

// ConflictError reports a failed hold: at least one requested seat
// was not free.  The whole operation is rejected and no seat changes
// state (all-or-nothing), which prevents partial holds and seat
// fragmentation.
type ConflictError struct {
	Seats []model.SeatID // the seats that were not free
}

func (e *ConflictError) Error() string {
	labels := make([]string, len(e.Seats))
	for i, s := range e.Seats {
		labels[i] = s.Label()
	}
	return fmt.Sprintf("seats unavailable: %s", strings.Join(labels, ","))
}

// seatEntry is the mutable per-seat record.  holder carries the
// session id that owns the seat while it is HELD or BOOKED.
type seatEntry struct {
	info   model.SeatInfo
	state  model.SeatState
	holder string
}

// Store is the in-memory seat inventory.  One Store instance serves
// the whole process; it is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	showtimes map[uint64]map[model.SeatID]*seatEntry
}

// NewStore returns an empty inventory store.
func NewStore() *Store {
	return &Store{showtimes: make(map[uint64]map[model.SeatID]*seatEntry)}
}

// Registered reports whether the showtime has been seeded.
func (s *Store) Registered(showtimeID uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.showtimes[showtimeID]
	return ok
}

// Register seeds the seat table for a showtime from its catalog layout
// and the set of seats already claimed by persisted bookings.  It is
// idempotent: a showtime that is already registered is left untouched
// so live holds are never clobbered by a re-seed.
func (s *Store) Register(showtimeID uint64, layout []model.SeatInfo, booked []model.SeatID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.showtimes[showtimeID]; ok {
		return
	}
	seats := make(map[model.SeatID]*seatEntry, len(layout))
	for _, info := range layout {
		seats[info.ID] = &seatEntry{info: info, state: model.SeatFree}
	}
	for _, id := range booked {
		if e, ok := seats[id]; ok {
			e.state = model.SeatBooked
		}
	}
	s.showtimes[showtimeID] = seats
}

// TryHold atomically transitions every seat in seatIDs from FREE to
// HELD tagged with sessionID.  The whole operation fails without any
// state change when the seat count does not equal ticketCount, when a
// seat is unknown, or when any seat is not FREE (ConflictError naming
// the losers).
func (s *Store) TryHold(showtimeID uint64, seatIDs []model.SeatID, sessionID string, ticketCount uint32) error {
	if uint32(len(seatIDs)) != ticketCount {
		return ErrCountMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seats, ok := s.showtimes[showtimeID]
	if !ok {
		return ErrShowtimeUnknown
	}
	// First pass: validate every seat is free before touching any.
	var conflict []model.SeatID
	for _, id := range seatIDs {
		e, ok := seats[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrSeatUnknown, id.Label())
		}
		if e.state != model.SeatFree {
			conflict = append(conflict, id)
		}
	}
	if len(conflict) > 0 {
		return &ConflictError{Seats: conflict}
	}
	// Second pass: take all seats.
	for _, id := range seatIDs {
		seats[id].state = model.SeatHeld
		seats[id].holder = sessionID
	}
	return nil
}

// Release transitions seats held by sessionID back to FREE.  Seats
// that are already free, booked, or held by a different session are
// skipped silently: expiry and user cancellation can both race to
// release the same hold, and the second call must be a harmless no-op.
func (s *Store) Release(showtimeID uint64, seatIDs []model.SeatID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats, ok := s.showtimes[showtimeID]
	if !ok {
		return
	}
	for _, id := range seatIDs {
		e, ok := seats[id]
		if !ok {
			continue
		}
		if e.state == model.SeatHeld && e.holder == sessionID {
			e.state = model.SeatFree
			e.holder = ""
		}
	}
}

// Commit transitions seats held by sessionID to BOOKED.  When any
// seat is not held by the session the whole operation fails with
// ErrSeatNotHeldBySession and no seat changes state.
func (s *Store) Commit(showtimeID uint64, seatIDs []model.SeatID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats, ok := s.showtimes[showtimeID]
	if !ok {
		return ErrShowtimeUnknown
	}
	for _, id := range seatIDs {
		e, ok := seats[id]
		if !ok || e.state != model.SeatHeld || e.holder != sessionID {
			return ErrSeatNotHeldBySession
		}
	}
	for _, id := range seatIDs {
		seats[id].state = model.SeatBooked
	}
	return nil
}

// Rollback reverts a Commit: seats booked under sessionID return to
// HELD so the session can retry finalization.  It compensates for a
// booking persistence failure that happened after Commit; seats must
// never stay BOOKED without a booking row.
func (s *Store) Rollback(showtimeID uint64, seatIDs []model.SeatID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats, ok := s.showtimes[showtimeID]
	if !ok {
		return
	}
	for _, id := range seatIDs {
		e, ok := seats[id]
		if !ok {
			continue
		}
		if e.state == model.SeatBooked && e.holder == sessionID {
			e.state = model.SeatHeld
		}
	}
}

// Snapshot returns a copy of the current seat states for rendering,
// sorted by row then number.  HELD seats appear as unavailable to
// concurrent customers, distinct from BOOKED.
func (s *Store) Snapshot(showtimeID uint64) ([]model.SeatStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seats, ok := s.showtimes[showtimeID]
	if !ok {
		return nil, ErrShowtimeUnknown
	}
	out := make([]model.SeatStatus, 0, len(seats))
	for id, e := range seats {
		out = append(out, model.SeatStatus{
			ID:         id,
			Label:      id.Label(),
			Type:       e.info.Type,
			PriceCents: e.info.PriceCents,
			State:      e.state,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID.Row != out[j].ID.Row {
			return out[i].ID.Row < out[j].ID.Row
		}
		return out[i].ID.Number < out[j].ID.Number
	})
	return out, nil
}
