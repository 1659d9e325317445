package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// chargeRetention is how long a charge stays resolvable after reaching
// a terminal status.  Duplicated callback deliveries and late status
// polls within the window still get an answer; after it the charge is
// dropped so settled transactions do not accumulate.
const chargeRetention = 10 * time.Minute

// QRAdapter is the asynchronous wallet-app method.  Issue registers a
// pending charge and returns the QR content immediately; the outcome
// arrives later when the confirming party calls MarkResult (wired to
// an HTTP callback endpoint).  Status is the polling read side used by
// the checkout state machine.  The hold timer bounds how long a
// session waits, so a confirmation that never arrives simply expires
// with the session.
type QRAdapter struct {
	mu        sync.Mutex
	pending   map[string]*qrCharge // sessionID -> charge
	byTxRef   map[string]string
	retention time.Duration
}

type qrCharge struct {
	txID   string
	status Status
}

// NewQRAdapter returns a QR adapter with no pending charges.
func NewQRAdapter() *QRAdapter {
	return &QRAdapter{
		pending:   make(map[string]*qrCharge),
		byTxRef:   make(map[string]string),
		retention: chargeRetention,
	}
}

// Method describes the QR wallet method.
func (a *QRAdapter) Method() Method {
	return Method{ID: "qr_wallet", Name: "QR wallet payment", Async: true}
}

// Issue registers a pending charge for the session and returns the
// payload to render as a QR code.  Re-issuing for a session that
// already has a pending charge returns the same transaction, so a
// customer re-entering the QR step keeps one charge, not two.
func (a *QRAdapter) Issue(_ context.Context, req Request) (QRPayload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.pending[req.SessionID]; ok && c.status == StatusPending {
		return a.payload(c.txID, req), nil
	}
	txID := "qr-" + uuid.NewString()
	a.pending[req.SessionID] = &qrCharge{txID: txID, status: StatusPending}
	a.byTxRef[txID] = req.SessionID
	return a.payload(txID, req), nil
}

func (a *QRAdapter) payload(txID string, req Request) QRPayload {
	return QRPayload{
		TransactionID: txID,
		Content:       fmt.Sprintf("PAY|%s|%s|%d", txID, req.BookingCode, req.AmountCents),
	}
}

// Status reports the current confirmation status for the session's
// pending charge.
func (a *QRAdapter) Status(_ context.Context, sessionID string) (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.pending[sessionID]
	if !ok {
		return "", ErrNoCharge
	}
	return c.status, nil
}

// Cancel abandons the session's pending charge.  Cancelling a session
// with no charge is not an error; the customer may back out of the QR
// step before the payload was ever issued.
func (a *QRAdapter) Cancel(_ context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.pending[sessionID]; ok {
		delete(a.byTxRef, c.txID)
		delete(a.pending, sessionID)
	}
	return nil
}

// MarkResult records the terminal outcome reported by the confirming
// party for a transaction reference.  Unknown references return
// ErrNoCharge; a repeat delivery for an already-terminal charge is
// accepted silently because payment callbacks can arrive more than
// once.
func (a *QRAdapter) MarkResult(txID string, paid bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessionID, ok := a.byTxRef[txID]
	if !ok {
		return ErrNoCharge
	}
	c := a.pending[sessionID]
	if c.status != StatusPending {
		return nil
	}
	if paid {
		c.status = StatusSuccess
	} else {
		c.status = StatusFailed
	}
	a.scheduleDrop(txID)
	return nil
}

// scheduleDrop arms the removal of a terminal charge once the retention
// window passed.  A charge that was cancelled or re-issued in the
// meantime no longer resolves through txID and is skipped.
func (a *QRAdapter) scheduleDrop(txID string) {
	time.AfterFunc(a.retention, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		sessionID, ok := a.byTxRef[txID]
		if !ok {
			return
		}
		if c := a.pending[sessionID]; c != nil && c.status != StatusPending {
			delete(a.pending, sessionID)
			delete(a.byTxRef, txID)
		}
	})
}
