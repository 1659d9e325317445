package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// finalizeLocked converts the session into a durable booking exactly
// once.  Must be called with sess.mu held.
//
// Order matters: the expiry check comes first (a finalize request must
// not be honored after the hold was lost), then the inventory commit,
// then the single atomic persistence call.  If persistence fails after
// the commit the seats are rolled back to held, so they can never stay
// booked without a booking row.  A second call on an already finalized
// session returns the stored booking; duplicated payment callbacks
// are expected.
func (s *Service) finalizeLocked(ctx context.Context, sess *Session, payRef string, paid bool) (*model.Booking, error) {
	if sess.step == StepFinalized {
		return sess.booking, nil
	}
	if sess.step.Closed() {
		return nil, ErrSessionClosed
	}
	if sess.timer.Expired() {
		s.expireLocked(sess)
		return nil, fmt.Errorf("%w: hold expired before finalize", ErrSessionClosed)
	}
	if !sess.infoEntered {
		return nil, fmt.Errorf("%w: customer info missing", ErrInvalidSelection)
	}

	if err := s.inv.Commit(sess.showtimeID, sess.seats, sess.id); err != nil {
		// The hold was lost to a race; the session is unusable and the
		// customer must restart the flow.
		s.expireLocked(sess)
		return nil, err
	}

	if sess.bookingCode == "" {
		code, err := s.bookings.GenerateCode(ctx)
		if err != nil {
			s.inv.Rollback(sess.showtimeID, sess.seats, sess.id)
			return nil, fmt.Errorf("generate booking code: %w", err)
		}
		sess.bookingCode = code
	}

	payStatus := model.PaymentUnpaid
	if paid {
		payStatus = model.PaymentPaid
	}
	labels := make([]string, len(sess.seats))
	for i, id := range sess.seats {
		labels[i] = id.Label()
	}
	draft := &model.Booking{
		Code:             sess.bookingCode,
		ShowtimeID:       sess.showtimeID,
		CustomerName:     sess.customer.FullName,
		CustomerEmail:    sess.customer.Email,
		CustomerPhone:    sess.customer.Phone,
		Seats:            append([]model.SeatID(nil), sess.seats...),
		SeatLabels:       labels,
		Tickets:          sess.ticketLines,
		Products:         sess.productLines,
		TotalAmountCents: sess.totalCents,
		PaymentMethod:    sess.paymentMethod,
		PaymentRef:       payRef,
		Status:           model.BookingConfirmed,
		PaymentStatus:    payStatus,
		CreatedAt:        time.Now().UTC(),
	}

	booking, err := s.bookings.Create(ctx, draft, sess.idempotencyToken)
	if err != nil {
		// Compensate: seats go back to held so the session may retry
		// while its window lasts.
		s.inv.Rollback(sess.showtimeID, sess.seats, sess.id)
		return nil, fmt.Errorf("persist booking: %w", err)
	}

	sess.timer.Stop()
	sess.booking = booking
	sess.step = StepFinalized
	s.scheduleEviction(sess.id)
	log.Printf("checkout: session %s finalized as booking %s (%d cents)", sess.id, booking.Code, booking.TotalAmountCents)

	if s.notifier != nil {
		// Off the critical path; a lost notification never fails a booking.
		go s.notifier.BookingConfirmed(context.WithoutCancel(ctx), booking, sess.showtime)
	}
	return booking, nil
}
