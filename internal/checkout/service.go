// Package checkout drives the reservation-and-payment flow: it owns
// the reservation sessions, walks each one through the checkout steps,
// and guarantees that a session converts into at most one persisted
// booking.  Seat contention is delegated to the inventory store and
// durable writes to the booking repository; this package sequences
// them and enforces the step transitions.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-checkout/internal/holdtimer"
	"github.com/iliyamo/cinema-checkout/internal/inventory"
	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
)

// Catalog is the read-only lookup the engine consumes from the
// showtime catalog collaborator.
type Catalog interface {
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
}

// BookingStore is the durable side of finalization.  Create must be
// atomic (booking row plus seats plus line items in one unit) and
// idempotent by token: a retried create for a token that already has a
// booking returns the stored booking instead of inserting a duplicate.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking, idempotencyToken string) (*model.Booking, error)
	GenerateCode(ctx context.Context) (string, error)
	BookedSeats(ctx context.Context, showtimeID uint64) ([]model.SeatID, error)
}

// Notifier delivers the customer notification for a finalized booking.
// It is fire-and-forget and never on the critical path of finalize.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b *model.Booking, st *model.Showtime)
}

// Service is the checkout state machine front door.  One instance
// serves all concurrent customer sessions.
type Service struct {
	inv      *inventory.Store
	catalog  Catalog
	bookings BookingStore
	payments *payment.Registry
	notifier Notifier

	holdTTL       time.Duration
	confirmWindow time.Duration
	retention     time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// closedSessionRetention is how long a session that reached a terminal
// step stays resolvable.  Duplicated payment callbacks and late status
// polls still get an answer during the grace period; after it the
// session and any charge still tracked for it are dropped.
const closedSessionRetention = 15 * time.Minute

// NewService wires the checkout engine.  notifier may be nil, in which
// case finalized bookings are only logged.  holdTTL bounds the whole
// seat-selection-to-payment window; confirmWindow is the fresh window
// granted when a session enters QR confirmation.
func NewService(inv *inventory.Store, catalog Catalog, bookings BookingStore, payments *payment.Registry, notifier Notifier, holdTTL, confirmWindow time.Duration) *Service {
	if inv == nil || catalog == nil || bookings == nil || payments == nil {
		panic("nil dependency passed to checkout.NewService")
	}
	return &Service{
		inv:           inv,
		catalog:       catalog,
		bookings:      bookings,
		payments:      payments,
		notifier:      notifier,
		holdTTL:       holdTTL,
		confirmWindow: confirmWindow,
		retention:     closedSessionRetention,
		sessions:      make(map[string]*Session),
	}
}

// Methods lists the payment methods customers can choose from.
func (s *Service) Methods() []payment.Method { return s.payments.Methods() }

// SeatSnapshot returns the current seat availability for a showtime,
// seeding the inventory from the catalog on first access.
func (s *Service) SeatSnapshot(ctx context.Context, showtimeID uint64) ([]model.SeatStatus, error) {
	if _, err := s.ensureInventory(ctx, showtimeID); err != nil {
		return nil, err
	}
	return s.inv.Snapshot(showtimeID)
}

// ensureInventory registers the showtime's seat table on first access,
// seeded from the catalog layout and the seats already claimed by
// persisted bookings.  It returns the catalog snapshot either way.
func (s *Service) ensureInventory(ctx context.Context, showtimeID uint64) (*model.Showtime, error) {
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if !s.inv.Registered(showtimeID) {
		booked, err := s.bookings.BookedSeats(ctx, showtimeID)
		if err != nil {
			return nil, err
		}
		s.inv.Register(showtimeID, st.Seats, booked)
	}
	return st, nil
}

// CreateReservation holds the requested seats for one customer and
// opens a reservation session.  The ticket total must equal the seat
// count; the hold is all-or-nothing.  On success the session enters
// CollectingCustomerInfo with the hold timer running, or skips ahead
// to ChoosingPayment when a complete authenticated profile is
// supplied, with the info step still recorded as entered so finalize
// re-validates uniformly.
func (s *Service) CreateReservation(ctx context.Context, showtimeID uint64, seats []model.SeatID, tickets model.TicketSelection, products model.ProductSelection, profile *model.CustomerInfo) (*SessionView, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", ErrInvalidSelection)
	}
	st, err := s.ensureInventory(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	ticketLines, productLines, total, err := buildLines(st, tickets, products)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		id:               uuid.NewString(),
		showtimeID:       showtimeID,
		showtime:         st,
		seats:            append([]model.SeatID(nil), seats...),
		tickets:          tickets,
		products:         products,
		ticketLines:      ticketLines,
		productLines:     productLines,
		totalCents:       total,
		step:             StepSelectingSeats,
		idempotencyToken: uuid.NewString(),
		createdAt:        time.Now().UTC(),
	}
	sessionID := sess.id
	sess.timer = holdtimer.New(func() { s.expire(sessionID) })

	if err := s.inv.TryHold(showtimeID, sess.seats, sess.id, tickets.Total()); err != nil {
		return nil, err
	}

	sess.step = StepCollectingCustomerInfo
	if profile != nil && profile.Complete() {
		sess.customer = *profile
		sess.customer.AcceptedTerms = true
		sess.infoEntered = true
		sess.step = StepChoosingPayment
	}

	// The session must be resolvable before the timer is armed: an
	// expiry firing into an unregistered session would never release
	// the hold.  Once published, every further mutation happens under
	// sess.mu.
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	sess.timer.Start(s.holdTTL)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// lookup fetches a live session by id.
func (s *Service) lookup(sessionID string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetSession returns the current view of a session.
func (s *Service) GetSession(_ context.Context, sessionID string) (*SessionView, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// AdvanceStep applies one customer-driven transition to the session.
// Closed sessions always fail with ErrSessionClosed and inputs sent
// for the wrong step fail with ErrInvalidSelection; neither leaves
// partial side effects.
func (s *Service) AdvanceStep(ctx context.Context, sessionID string, input StepInput) (*SessionView, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Expiry is authoritative server-side: check the deadline before
	// accepting any mutation, never the client's countdown.
	if !sess.step.Closed() && sess.timer.Expired() {
		s.expireLocked(sess)
	}
	if sess.step.Closed() {
		return nil, ErrSessionClosed
	}

	switch in := input.(type) {
	case CustomerInfoInput:
		return s.submitCustomerInfo(sess, in.Info)
	case PaymentChoiceInput:
		return s.choosePayment(ctx, sess, in.MethodID)
	case CancelQRInput:
		return s.cancelQR(ctx, sess)
	case BackInput:
		return s.goBack(sess, in.To)
	default:
		return nil, fmt.Errorf("%w: unsupported step input", ErrInvalidSelection)
	}
}

// submitCustomerInfo records the contact details and advances to the
// payment step.  The timer is untouched.
func (s *Service) submitCustomerInfo(sess *Session, info model.CustomerInfo) (*SessionView, error) {
	if sess.step != StepCollectingCustomerInfo {
		return nil, fmt.Errorf("%w: customer info not expected at step %s", ErrInvalidSelection, sess.step)
	}
	if !info.Complete() {
		return nil, fmt.Errorf("%w: name, email and phone are required", ErrInvalidSelection)
	}
	if !info.AcceptedTerms {
		return nil, fmt.Errorf("%w: terms must be accepted", ErrInvalidSelection)
	}
	sess.customer = info
	sess.infoEntered = true
	sess.step = StepChoosingPayment
	return sess.view(), nil
}

// choosePayment applies the method selection.  Asynchronous methods
// generate the booking code now (not earlier, so abandoned sessions
// never consume codes), reset the timer to the confirmation window and
// issue the QR challenge.  Synchronous methods finalize in place.
func (s *Service) choosePayment(ctx context.Context, sess *Session, methodID string) (*SessionView, error) {
	if sess.step != StepChoosingPayment {
		return nil, fmt.Errorf("%w: payment choice not expected at step %s", ErrInvalidSelection, sess.step)
	}
	if !sess.infoEntered {
		return nil, fmt.Errorf("%w: customer info missing", ErrInvalidSelection)
	}
	if uint32(len(sess.seats)) != sess.tickets.Total() {
		return nil, fmt.Errorf("%w: seat count does not match ticket count", ErrInvalidSelection)
	}
	adapter, err := s.payments.Get(methodID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, methodID)
	}
	sess.paymentMethod = methodID

	async, ok := adapter.(payment.AsyncAdapter)
	if !ok {
		direct, ok := adapter.(payment.SyncAdapter)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSelection, methodID)
		}
		res, err := direct.Charge(ctx, payment.Request{
			SessionID:   sess.id,
			BookingCode: sess.bookingCode,
			AmountCents: sess.totalCents,
		})
		if err != nil {
			return nil, fmt.Errorf("payment charge: %w", err)
		}
		if res.Status != payment.StatusSuccess {
			return nil, ErrPaymentFailed
		}
		if _, err := s.finalizeLocked(ctx, sess, res.TransactionID, false); err != nil {
			return nil, err
		}
		return sess.view(), nil
	}

	if sess.bookingCode == "" {
		code, err := s.bookings.GenerateCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate booking code: %w", err)
		}
		sess.bookingCode = code
	}
	qr, err := async.Issue(ctx, payment.Request{
		SessionID:   sess.id,
		BookingCode: sess.bookingCode,
		AmountCents: sess.totalCents,
	})
	if err != nil {
		return nil, fmt.Errorf("issue qr charge: %w", err)
	}
	// Entering confirmation grants a fresh window, superseding whatever
	// seat-selection time remained.
	sess.timer.Reset(s.confirmWindow)
	sess.qr = &qr
	sess.payRef = qr.TransactionID
	sess.step = StepAwaitingConfirmation
	return sess.view(), nil
}

// cancelQR abandons the in-flight QR charge and returns to method
// selection.  Seats stay held; the timer continues from where it was.
func (s *Service) cancelQR(ctx context.Context, sess *Session) (*SessionView, error) {
	if sess.step != StepAwaitingConfirmation {
		return nil, fmt.Errorf("%w: no confirmation in progress", ErrInvalidSelection)
	}
	if adapter, err := s.payments.Get(sess.paymentMethod); err == nil {
		if async, ok := adapter.(payment.AsyncAdapter); ok {
			if err := async.Cancel(ctx, sess.id); err != nil {
				log.Printf("checkout: cancel qr charge for session %s: %v", sess.id, err)
			}
		}
	}
	sess.qr = nil
	sess.payRef = ""
	sess.step = StepChoosingPayment
	return sess.view(), nil
}

// goBack moves the step pointer backward.  Seats and the timer are
// untouched; only re-entry into a step re-runs its validation.
func (s *Service) goBack(sess *Session, to Step) (*SessionView, error) {
	if to != StepCollectingCustomerInfo && to != StepChoosingPayment {
		return nil, fmt.Errorf("%w: cannot navigate to step %s", ErrInvalidSelection, to)
	}
	if to >= sess.step {
		return nil, fmt.Errorf("%w: can only navigate backward", ErrInvalidSelection)
	}
	if sess.step == StepAwaitingConfirmation {
		return nil, fmt.Errorf("%w: cancel the pending payment first", ErrInvalidSelection)
	}
	sess.step = to
	return sess.view(), nil
}

// ConfirmationStatus reports the payment confirmation state for the
// presentation layer's polling loop: pending, success, failed or
// expired.  While the session awaits confirmation the adapter is
// polled, and a success status finalizes the booking in the same call.
func (s *Service) ConfirmationStatus(ctx context.Context, sessionID string) (string, *model.Booking, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return "", nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.step {
	case StepFinalized:
		return string(payment.StatusSuccess), sess.booking, nil
	case StepExpired, StepCancelled:
		return "expired", nil, nil
	case StepAwaitingConfirmation:
		// fall through to the adapter poll below
	default:
		return string(payment.StatusPending), nil, nil
	}

	if sess.timer.Expired() {
		s.expireLocked(sess)
		return "expired", nil, nil
	}
	adapter, err := s.payments.Get(sess.paymentMethod)
	if err != nil {
		return "", nil, err
	}
	async, ok := adapter.(payment.AsyncAdapter)
	if !ok {
		return "", nil, fmt.Errorf("%w: method %q has no confirmation channel", ErrInvalidSelection, sess.paymentMethod)
	}
	status, err := async.Status(ctx, sess.id)
	if err != nil {
		return "", nil, err
	}
	switch status {
	case payment.StatusSuccess:
		b, err := s.finalizeLocked(ctx, sess, sess.payRef, true)
		if err != nil {
			return "", nil, err
		}
		return string(payment.StatusSuccess), b, nil
	case payment.StatusFailed:
		return string(payment.StatusFailed), nil, nil
	default:
		return string(payment.StatusPending), nil, nil
	}
}

// CancelReservation abandons the session and releases its seats.  It
// is idempotent with expiry: whichever path closes the session first
// wins and the other becomes a no-op.
func (s *Service) CancelReservation(ctx context.Context, sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.step.Closed() {
		return nil
	}
	if sess.step == StepAwaitingConfirmation {
		if adapter, aerr := s.payments.Get(sess.paymentMethod); aerr == nil {
			if async, ok := adapter.(payment.AsyncAdapter); ok {
				_ = async.Cancel(ctx, sess.id)
			}
		}
	}
	sess.timer.Stop()
	s.inv.Release(sess.showtimeID, sess.seats, sess.id)
	sess.step = StepCancelled
	s.scheduleEviction(sess.id)
	return nil
}

// expire is the hold timer's callback: the single trigger that closes
// a session involuntarily and releases its seats.
func (s *Service) expire(sessionID string) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.expireLocked(sess)
}

// scheduleEviction arms the one-shot removal of a closed session from
// the session table after the retention grace period.
func (s *Service) scheduleEviction(sessionID string) {
	time.AfterFunc(s.retention, func() { s.evict(sessionID) })
}

// evict drops a closed session and forgets any charge the payment
// channel still tracks for it.  Terminal steps never transition back,
// so a session seen closed here stays closed.
func (s *Service) evict(sessionID string) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return
	}
	sess.mu.Lock()
	closed := sess.step.Closed()
	method := sess.paymentMethod
	sess.mu.Unlock()
	if !closed {
		return
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if method == "" {
		return
	}
	if adapter, err := s.payments.Get(method); err == nil {
		if async, ok := adapter.(payment.AsyncAdapter); ok {
			_ = async.Cancel(context.Background(), sessionID)
		}
	}
}

// expireLocked must be called with sess.mu held.  Closing is
// idempotent: a session already closed by cancellation or
// finalization is left untouched.
func (s *Service) expireLocked(sess *Session) {
	if sess.step.Closed() {
		return
	}
	sess.timer.Stop()
	s.inv.Release(sess.showtimeID, sess.seats, sess.id)
	sess.step = StepExpired
	s.scheduleEviction(sess.id)
	log.Printf("checkout: session %s expired, released %d seat(s)", sess.id, len(sess.seats))
}

// IsClosedErr reports whether the error ends the checkout flow for
// good, as opposed to recoverable validation errors.
func IsClosedErr(err error) bool {
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, inventory.ErrSeatNotHeldBySession)
}
