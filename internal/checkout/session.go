package checkout

import (
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/holdtimer"
	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
)

// Step is the checkout position of a reservation session.  Values are
// an explicit enum with defined transitions; there are no fractional
// in-between steps.
type Step int

const (
	StepSelectingSeats Step = iota // seats picked but not yet held
	StepCollectingCustomerInfo     // seats held, contact details pending
	StepChoosingPayment            // contact captured, method pending
	StepAwaitingConfirmation       // async charge issued, outcome pending
	StepFinalized                  // booking persisted; terminal
	StepExpired                    // hold timer ran out; terminal
	StepCancelled                  // customer abandoned; terminal
)

// String renders the step for logs and API payloads.
func (s Step) String() string {
	switch s {
	case StepSelectingSeats:
		return "selecting_seats"
	case StepCollectingCustomerInfo:
		return "collecting_customer_info"
	case StepChoosingPayment:
		return "choosing_payment"
	case StepAwaitingConfirmation:
		return "awaiting_confirmation"
	case StepFinalized:
		return "finalized"
	case StepExpired:
		return "expired"
	case StepCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Closed reports whether the step is terminal.  A closed session
// rejects every further transition with ErrSessionClosed.
func (s Step) Closed() bool {
	return s == StepFinalized || s == StepExpired || s == StepCancelled
}

// Sentinel errors surfaced by session transitions.  Handlers map them
// onto the HTTP taxonomy; each one leaves the session without partial
// side effects.
var (
	// ErrSessionNotFound means the session id is unknown to the engine.
	ErrSessionNotFound = errors.New("reservation session not found")
	// ErrSessionClosed means the session is already finalized, expired
	// or cancelled; the flow must be restarted.
	ErrSessionClosed = errors.New("reservation session closed")
	// ErrInvalidSelection covers client validation gaps: unknown ticket
	// or product ids, ticket totals that do not match the seat count,
	// incomplete customer info, or an input sent for the wrong step.
	ErrInvalidSelection = errors.New("invalid selection for current step")
	// ErrPaymentFailed means the payment channel reported a terminal
	// failure; the customer may retry while the hold timer has time.
	ErrPaymentFailed = errors.New("payment failed")
)

// Session is the central aggregate: one customer's held seats, frozen
// pricing, progressively collected customer info and checkout position,
// bound to a single hold timer.  One checkout flow drives a session,
// but its timer expiry and an incoming payment confirmation can still
// race, so every mutation happens under mu and the closing paths are
// idempotent.
type Session struct {
	mu sync.Mutex

	id         string
	showtimeID uint64
	showtime   *model.Showtime // catalog snapshot taken at creation; prices frozen
	seats      []model.SeatID
	tickets    model.TicketSelection
	products   model.ProductSelection

	ticketLines  []model.BookingLine
	productLines []model.BookingLine
	totalCents   int64

	step        Step
	infoEntered bool
	customer    model.CustomerInfo

	paymentMethod string
	qr            *payment.QRPayload
	payRef        string

	bookingCode      string
	idempotencyToken string
	booking          *model.Booking

	createdAt time.Time
	timer     *holdtimer.Timer
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SessionView is the read model handed to the presentation layer.  It
// is a detached copy; mutating it has no effect on the session.
type SessionView struct {
	ID               string              `json:"id"`
	ShowtimeID       uint64              `json:"showtime_id"`
	Step             string              `json:"step"`
	Seats            []string            `json:"seats"`
	Tickets          []model.BookingLine `json:"tickets"`
	Products         []model.BookingLine `json:"products,omitempty"`
	TotalAmountCents int64               `json:"total_amount_cents"`
	Customer         *model.CustomerInfo `json:"customer,omitempty"`
	PaymentMethod    string              `json:"payment_method,omitempty"`
	BookingCode      string              `json:"booking_code,omitempty"`
	QR               *payment.QRPayload  `json:"qr,omitempty"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	RemainingDisplay string              `json:"remaining_display"`
	ExpiresAt        *time.Time          `json:"expires_at,omitempty"`
	Booking          *model.Booking      `json:"booking,omitempty"`
}

// view must be called with s.mu held.
func (s *Session) view() *SessionView {
	labels := make([]string, len(s.seats))
	for i, id := range s.seats {
		labels[i] = id.Label()
	}
	remaining := s.timer.Remaining()
	v := &SessionView{
		ID:               s.id,
		ShowtimeID:       s.showtimeID,
		Step:             s.step.String(),
		Seats:            labels,
		Tickets:          s.ticketLines,
		Products:         s.productLines,
		TotalAmountCents: s.totalCents,
		PaymentMethod:    s.paymentMethod,
		BookingCode:      s.bookingCode,
		QR:               s.qr,
		RemainingSeconds: int(remaining.Round(time.Second).Seconds()),
		RemainingDisplay: holdtimer.FormatRemaining(remaining),
		Booking:          s.booking,
	}
	if s.infoEntered {
		ci := s.customer
		v.Customer = &ci
	}
	if dl := s.timer.Deadline(); !dl.IsZero() && !s.step.Closed() {
		v.ExpiresAt = &dl
	}
	return v
}

// StepInput is the tagged-variant input to AdvanceStep.  Exactly one
// concrete variant exists per transition the customer can trigger.
type StepInput interface{ stepInput() }

// CustomerInfoInput submits the contact details step.
type CustomerInfoInput struct {
	Info model.CustomerInfo
}

// PaymentChoiceInput selects a payment method.  Synchronous methods
// finalize immediately; asynchronous ones move the session into
// AwaitingConfirmation with a fresh confirmation window.
type PaymentChoiceInput struct {
	MethodID string
}

// CancelQRInput abandons the in-progress QR charge and returns to
// method selection.  Seats stay held and the timer keeps running.
type CancelQRInput struct{}

// BackInput moves the step pointer backward without touching seats or
// the timer.
type BackInput struct {
	To Step
}

func (CustomerInfoInput) stepInput()  {}
func (PaymentChoiceInput) stepInput() {}
func (CancelQRInput) stepInput()      {}
func (BackInput) stepInput()          {}
