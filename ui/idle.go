package ui

import "time"

// IdleTimeout is how long input must be absent before the control chrome
// hides in fullscreen.
const IdleTimeout = 2 * time.Second

// IdleTracker drives the hide-controls-when-inactive behavior. Any user
// input resets the inactivity clock to zero.
type IdleTracker struct {
	last    time.Time
	timeout time.Duration
}

func NewIdleTracker(timeout time.Duration) *IdleTracker {
	return &IdleTracker{last: time.Now(), timeout: timeout}
}

// Touch records user activity.
func (t *IdleTracker) Touch(now time.Time) {
	t.last = now
}

// Idle reports whether the timeout has elapsed since the last activity.
func (t *IdleTracker) Idle(now time.Time) bool {
	return now.Sub(t.last) >= t.timeout
}
