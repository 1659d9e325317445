// Package holdtimer implements the per-session countdown that bounds
// how long a customer may keep seats held before they are released.
// Every reservation session owns exactly one Timer; the expiry
// callback is the single trigger for involuntary session teardown.
package holdtimer

import (
	"fmt"
	"sync"
	"time"
)

// Timer is a restartable countdown with an at-most-once expiry
// callback per armed window.  The deadline it stores is the server-side
// authority for expiry checks; client-reported time is never trusted.
// All methods are safe for concurrent use.
type Timer struct {
	mu       sync.Mutex
	deadline time.Time
	active   bool
	fired    bool
	timer    *time.Timer
	onExpire func()
}

// New returns an inactive timer.  onExpire runs on its own goroutine
// when an armed countdown reaches zero; it may be nil.
func New(onExpire func()) *Timer {
	return &Timer{onExpire: onExpire}
}

// Start arms the countdown for the given duration.  It is idempotent:
// calling Start while the timer is already active does not restart it,
// guarding against duplicate start triggers from retries.
func (t *Timer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return
	}
	t.arm(d)
}

// Reset replaces the remaining time with a fresh window and restarts
// the countdown regardless of prior state.  The checkout flow uses it
// when entering the payment-confirmation step, which supersedes any
// remaining seat-selection time.
func (t *Timer) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.arm(d)
}

// arm must be called with t.mu held.
func (t *Timer) arm(d time.Duration) {
	t.deadline = time.Now().Add(d)
	t.active = true
	t.fired = false
	t.timer = time.AfterFunc(d, t.fire)
}

// Stop halts the countdown without firing expiry.  Used once a booking
// has been finalized.  The deadline is cleared so a stopped timer
// reports zero remaining time instead of a leftover countdown.
// Stopping an inactive timer is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.active = false
	t.deadline = time.Time{}
}

// fire delivers the expiry signal at most once per armed window.  The
// deadline is re-checked under the lock so a Reset that raced the
// underlying time.Timer does not cause a premature expiry.
func (t *Timer) fire() {
	t.mu.Lock()
	if !t.active || t.fired || time.Now().Before(t.deadline) {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.active = false
	cb := t.onExpire
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Remaining returns the time left until the deadline, clamped to zero.
// It is non-increasing while the timer is active and only grows via
// Reset.  An unarmed timer reports zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline.IsZero() {
		return 0
	}
	r := time.Until(t.deadline)
	if r < 0 || (!t.active && t.fired) {
		return 0
	}
	return r
}

// Expired reports whether the deadline has passed while the window was
// armed.  This is the server-side validity check performed before any
// state-mutating operation is accepted.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.deadline.IsZero() {
		return false
	}
	if t.fired {
		return true
	}
	return t.active && !time.Now().Before(t.deadline)
}

// Deadline returns the current deadline (zero when not armed).
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// FormatRemaining renders a duration as MM:SS with whole-second
// resolution, the format shown on the checkout countdown.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
