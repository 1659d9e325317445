package payment

import (
	"context"

	"github.com/google/uuid"
)

// CounterAdapter is the synchronous pay-at-counter method: the charge
// "succeeds" immediately because payment is collected in person when
// the customer picks up the tickets.  The resulting booking stays
// unpaid until the counter settles it.
type CounterAdapter struct{}

// NewCounterAdapter returns the pay-at-counter adapter.
func NewCounterAdapter() *CounterAdapter { return &CounterAdapter{} }

// Method describes the counter method.
func (a *CounterAdapter) Method() Method {
	return Method{ID: "counter", Name: "Pay at counter", Async: false}
}

// Charge reserves a counter transaction reference and reports success.
func (a *CounterAdapter) Charge(_ context.Context, _ Request) (Result, error) {
	return Result{
		TransactionID: "ctr-" + uuid.NewString(),
		Status:        StatusSuccess,
	}, nil
}
