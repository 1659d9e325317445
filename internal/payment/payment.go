// Package payment abstracts the external payment channel behind a
// small adapter interface.  Synchronous methods (pay at counter,
// direct card charge) return a terminal status immediately; the
// asynchronous QR method issues a payload up front and learns the
// outcome later from the confirming party.  The checkout engine never
// assumes which mechanism delivers confirmations; adapters are
// registered by method id and are fully pluggable.
package payment

import (
	"context"
	"errors"
)

// Status is the uniform confirmation status an adapter reports to the
// checkout state machine.  Expiry is enforced by the session's hold
// timer independently of the adapter, so adapters only ever report
// pending, success or failed.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrUnknownMethod is returned by a Registry lookup for a method id
// that has no registered adapter.
var ErrUnknownMethod = errors.New("unknown payment method")

// ErrNoCharge is returned by Status and MarkResult when no charge is
// pending for the given session.
var ErrNoCharge = errors.New("no pending charge for session")

// Method describes one selectable payment method.  Async methods go
// through the AwaitingConfirmation step; synchronous ones finalize
// immediately after selection.
type Method struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Async bool   `json:"async"`
}

// Request carries everything an adapter needs to start a charge.
type Request struct {
	SessionID   string // reservation session the charge belongs to
	BookingCode string // customer-facing code shown on the payment screen
	AmountCents int64  // amount due in minor units
}

// Result is the outcome of a charge attempt.
type Result struct {
	TransactionID string // reference from the payment channel
	Status        Status // terminal for sync adapters
}

// Adapter is implemented by every payment method.
type Adapter interface {
	Method() Method
}

// SyncAdapter completes a charge in a single call.
type SyncAdapter interface {
	Adapter
	Charge(ctx context.Context, req Request) (Result, error)
}

// AsyncAdapter issues a QR challenge immediately and reports the
// confirmation status later.  Status is polled by the state machine
// while the session sits in AwaitingConfirmation; Cancel abandons an
// in-flight charge when the customer backs out of the QR flow.
type AsyncAdapter interface {
	Adapter
	Issue(ctx context.Context, req Request) (QRPayload, error)
	Status(ctx context.Context, sessionID string) (Status, error)
	Cancel(ctx context.Context, sessionID string) error
}

// QRPayload is the challenge handed to the customer for an async
// charge.  Content is the string encoded into the QR image by the
// presentation layer.
type QRPayload struct {
	TransactionID string `json:"transaction_id"`
	Content       string `json:"content"`
}

// Registry maps method ids to adapters.  It is populated once at
// startup and read-only afterwards.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds a registry from the given adapters, preserving
// registration order for method listings.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		id := a.Method().ID
		if _, dup := r.adapters[id]; dup {
			continue
		}
		r.adapters[id] = a
		r.order = append(r.order, id)
	}
	return r
}

// Get returns the adapter for a method id.
func (r *Registry) Get(methodID string) (Adapter, error) {
	a, ok := r.adapters[methodID]
	if !ok {
		return nil, ErrUnknownMethod
	}
	return a, nil
}

// Methods lists all registered methods in registration order.
func (r *Registry) Methods() []Method {
	out := make([]Method, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id].Method())
	}
	return out
}
