package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupAndOrder(t *testing.T) {
	counter := NewCounterAdapter()
	qr := NewQRAdapter()
	r := NewRegistry(counter, qr)

	got, err := r.Get("counter")
	require.NoError(t, err)
	assert.Same(t, Adapter(counter), got)

	_, err = r.Get("cash_on_mars")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	methods := r.Methods()
	require.Len(t, methods, 2)
	assert.Equal(t, "counter", methods[0].ID)
	assert.False(t, methods[0].Async)
	assert.Equal(t, "qr_wallet", methods[1].ID)
	assert.True(t, methods[1].Async)
}

func TestRegistryIgnoresDuplicateIDs(t *testing.T) {
	r := NewRegistry(NewCounterAdapter(), NewCounterAdapter())
	assert.Len(t, r.Methods(), 1)
}

func TestCounterChargeSucceedsImmediately(t *testing.T) {
	a := NewCounterAdapter()
	res, err := a.Charge(context.Background(), Request{SessionID: "s1", AmountCents: 180000})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotEmpty(t, res.TransactionID)
}

func TestQRIssueIsIdempotentPerSession(t *testing.T) {
	a := NewQRAdapter()
	req := Request{SessionID: "s1", BookingCode: "ABCD2345", AmountCents: 180000}

	first, err := a.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, first.Content, "ABCD2345")
	assert.Contains(t, first.Content, first.TransactionID)

	second, err := a.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, second.TransactionID, "re-issuing keeps the same pending charge")
}

func TestQRStatusLifecycle(t *testing.T) {
	a := NewQRAdapter()
	ctx := context.Background()

	_, err := a.Status(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoCharge)

	qr, err := a.Issue(ctx, Request{SessionID: "s1", BookingCode: "CODE1234", AmountCents: 5000})
	require.NoError(t, err)

	status, err := a.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	require.NoError(t, a.MarkResult(qr.TransactionID, true))
	status, err = a.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	// A repeated callback delivery must not flip a terminal status.
	require.NoError(t, a.MarkResult(qr.TransactionID, false))
	status, _ = a.Status(ctx, "s1")
	assert.Equal(t, StatusSuccess, status)
}

func TestQRMarkResultFailed(t *testing.T) {
	a := NewQRAdapter()
	qr, err := a.Issue(context.Background(), Request{SessionID: "s1", BookingCode: "CODE1234", AmountCents: 5000})
	require.NoError(t, err)

	require.NoError(t, a.MarkResult(qr.TransactionID, false))
	status, err := a.Status(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status)
}

func TestQRMarkResultUnknownReference(t *testing.T) {
	a := NewQRAdapter()
	assert.ErrorIs(t, a.MarkResult("qr-nope", true), ErrNoCharge)
}

func TestQRCancelDropsCharge(t *testing.T) {
	a := NewQRAdapter()
	ctx := context.Background()
	qr, err := a.Issue(ctx, Request{SessionID: "s1", BookingCode: "CODE1234", AmountCents: 5000})
	require.NoError(t, err)

	require.NoError(t, a.Cancel(ctx, "s1"))
	_, err = a.Status(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoCharge)
	assert.ErrorIs(t, a.MarkResult(qr.TransactionID, true), ErrNoCharge)

	// Cancelling with nothing pending is fine.
	assert.NoError(t, a.Cancel(ctx, "s1"))

	// A fresh issue after cancel gets a new transaction.
	again, err := a.Issue(ctx, Request{SessionID: "s1", BookingCode: "CODE1234", AmountCents: 5000})
	require.NoError(t, err)
	assert.NotEqual(t, qr.TransactionID, again.TransactionID)
}

func TestQRTerminalChargeDroppedAfterRetention(t *testing.T) {
	a := NewQRAdapter()
	a.retention = 20 * time.Millisecond
	ctx := context.Background()

	qr, err := a.Issue(ctx, Request{SessionID: "s1", BookingCode: "CODE1234", AmountCents: 5000})
	require.NoError(t, err)
	require.NoError(t, a.MarkResult(qr.TransactionID, true))

	// Within the retention window the charge still answers polls and
	// duplicated deliveries.
	status, err := a.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.NoError(t, a.MarkResult(qr.TransactionID, true))

	require.Eventually(t, func() bool {
		_, err := a.Status(ctx, "s1")
		return err != nil
	}, time.Second, 5*time.Millisecond, "settled charge must be dropped")
	_, err = a.Status(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoCharge)
	assert.ErrorIs(t, a.MarkResult(qr.TransactionID, true), ErrNoCharge)

	// A pending charge is never dropped by retention.
	fresh, err := a.Issue(ctx, Request{SessionID: "s2", BookingCode: "CODE5678", AmountCents: 7000})
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	status, err = a.Status(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
	require.NoError(t, a.MarkResult(fresh.TransactionID, false))
}
