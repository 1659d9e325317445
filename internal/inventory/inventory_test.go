package inventory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

const showtimeID uint64 = 42

func seat(row string, n uint32) model.SeatID { return model.SeatID{Row: row, Number: n} }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	layout := []model.SeatInfo{
		{ID: seat("A", 1), Type: model.SeatRegular, PriceCents: 90000},
		{ID: seat("A", 2), Type: model.SeatRegular, PriceCents: 90000},
		{ID: seat("B", 5), Type: model.SeatVIP, PriceCents: 150000},
		{ID: seat("C", 3), Type: model.SeatCouple, PriceCents: 180000},
	}
	s := NewStore()
	s.Register(showtimeID, layout, nil)
	return s
}

func TestTryHoldMarksSeatsHeld(t *testing.T) {
	s := newTestStore(t)
	err := s.TryHold(showtimeID, []model.SeatID{seat("A", 1), seat("A", 2)}, "sess-1", 2)
	require.NoError(t, err)

	snap, err := s.Snapshot(showtimeID)
	require.NoError(t, err)
	states := map[string]model.SeatState{}
	for _, st := range snap {
		states[st.Label] = st.State
	}
	assert.Equal(t, model.SeatHeld, states["A1"])
	assert.Equal(t, model.SeatHeld, states["A2"])
	assert.Equal(t, model.SeatFree, states["B5"])
}

func TestTryHoldRejectsTicketCountMismatch(t *testing.T) {
	s := newTestStore(t)
	err := s.TryHold(showtimeID, []model.SeatID{seat("A", 1), seat("A", 2)}, "sess-1", 3)
	assert.ErrorIs(t, err, ErrCountMismatch)

	snap, _ := s.Snapshot(showtimeID)
	for _, st := range snap {
		assert.Equal(t, model.SeatFree, st.State, "no seat may change state on a rejected hold")
	}
}

func TestTryHoldIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.TryHold(showtimeID, []model.SeatID{seat("A", 2)}, "sess-1", 1))

	err := s.TryHold(showtimeID, []model.SeatID{seat("A", 1), seat("A", 2)}, "sess-2", 2)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []model.SeatID{seat("A", 2)}, conflict.Seats)

	// A1 must remain free even though it appeared first in the rejected request.
	snap, _ := s.Snapshot(showtimeID)
	for _, st := range snap {
		if st.Label == "A1" {
			assert.Equal(t, model.SeatFree, st.State)
		}
	}
}

func TestTryHoldUnknownSeat(t *testing.T) {
	s := newTestStore(t)
	err := s.TryHold(showtimeID, []model.SeatID{seat("Z", 99)}, "sess-1", 1)
	assert.ErrorIs(t, err, ErrSeatUnknown)
}

func TestTryHoldUnregisteredShowtime(t *testing.T) {
	s := NewStore()
	err := s.TryHold(7, []model.SeatID{seat("A", 1)}, "sess-1", 1)
	assert.ErrorIs(t, err, ErrShowtimeUnknown)
}

func TestConcurrentHoldsExactlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	target := []model.SeatID{seat("B", 5)}

	const contenders = 32
	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.TryHold(showtimeID, target, fmt.Sprintf("sess-%d", i), 1)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			var conflict *ConflictError
			assert.ErrorAs(t, err, &conflict)
		}
	}
	assert.Equal(t, 1, winners, "exactly one racing hold may win the seat")
}

func TestReleaseIsIdempotentAndTagChecked(t *testing.T) {
	s := newTestStore(t)
	seats := []model.SeatID{seat("A", 1)}
	require.NoError(t, s.TryHold(showtimeID, seats, "sess-1", 1))

	// A foreign session releasing the seat must be a no-op.
	s.Release(showtimeID, seats, "sess-2")
	snap, _ := s.Snapshot(showtimeID)
	assert.Equal(t, model.SeatHeld, snap[0].State)

	s.Release(showtimeID, seats, "sess-1")
	s.Release(showtimeID, seats, "sess-1") // second release is harmless
	snap, _ = s.Snapshot(showtimeID)
	assert.Equal(t, model.SeatFree, snap[0].State)
}

func TestCommitRequiresHold(t *testing.T) {
	s := newTestStore(t)
	seats := []model.SeatID{seat("A", 1), seat("A", 2)}
	require.NoError(t, s.TryHold(showtimeID, []model.SeatID{seat("A", 1)}, "sess-1", 1))

	// sess-1 only holds A1; committing A1+A2 must fail without touching A1.
	err := s.Commit(showtimeID, seats, "sess-1")
	assert.ErrorIs(t, err, ErrSeatNotHeldBySession)
	snap, _ := s.Snapshot(showtimeID)
	assert.Equal(t, model.SeatHeld, snap[0].State)

	require.NoError(t, s.Commit(showtimeID, []model.SeatID{seat("A", 1)}, "sess-1"))
	snap, _ = s.Snapshot(showtimeID)
	assert.Equal(t, model.SeatBooked, snap[0].State)
}

func TestCommitAfterReleaseFails(t *testing.T) {
	s := newTestStore(t)
	seats := []model.SeatID{seat("C", 3)}
	require.NoError(t, s.TryHold(showtimeID, seats, "sess-1", 1))
	s.Release(showtimeID, seats, "sess-1")

	err := s.Commit(showtimeID, seats, "sess-1")
	assert.ErrorIs(t, err, ErrSeatNotHeldBySession)
}

func TestRollbackReturnsBookedSeatsToHeld(t *testing.T) {
	s := newTestStore(t)
	seats := []model.SeatID{seat("A", 1), seat("A", 2)}
	require.NoError(t, s.TryHold(showtimeID, seats, "sess-1", 2))
	require.NoError(t, s.Commit(showtimeID, seats, "sess-1"))

	s.Rollback(showtimeID, seats, "sess-1")
	snap, _ := s.Snapshot(showtimeID)
	states := map[string]model.SeatState{}
	for _, st := range snap {
		states[st.Label] = st.State
	}
	assert.Equal(t, model.SeatHeld, states["A1"])
	assert.Equal(t, model.SeatHeld, states["A2"])

	// The session can retry the commit afterwards.
	require.NoError(t, s.Commit(showtimeID, seats, "sess-1"))
}

func TestRegisterSeedsBookedSeatsAndIsIdempotent(t *testing.T) {
	layout := []model.SeatInfo{
		{ID: seat("A", 1), Type: model.SeatRegular, PriceCents: 90000},
		{ID: seat("A", 2), Type: model.SeatRegular, PriceCents: 90000},
	}
	s := NewStore()
	s.Register(showtimeID, layout, []model.SeatID{seat("A", 2)})

	snap, err := s.Snapshot(showtimeID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, snap[0].State)
	assert.Equal(t, model.SeatBooked, snap[1].State)

	// Re-registering must not clobber a live hold.
	require.NoError(t, s.TryHold(showtimeID, []model.SeatID{seat("A", 1)}, "sess-1", 1))
	s.Register(showtimeID, layout, nil)
	snap, _ = s.Snapshot(showtimeID)
	assert.Equal(t, model.SeatHeld, snap[0].State)
}

func TestSnapshotIsSortedCopy(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.Snapshot(showtimeID)
	require.NoError(t, err)
	require.Len(t, snap, 4)
	assert.Equal(t, []string{"A1", "A2", "B5", "C3"}, []string{snap[0].Label, snap[1].Label, snap[2].Label, snap[3].Label})

	// Mutating the snapshot must not leak into the store.
	snap[0].State = model.SeatBooked
	again, _ := s.Snapshot(showtimeID)
	assert.Equal(t, model.SeatFree, again[0].State)
}
