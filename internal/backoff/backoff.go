// Package backoff implements the reconnection schedule: exponentially
// increasing delays with a cap, and a hard ceiling on attempt count.
package backoff

import "time"

// Scheduler computes reconnection delays and tracks attempt budget for one
// connection cycle. Not safe for concurrent use; each reconnection loop
// owns its own Scheduler.
type Scheduler struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int
	attempt     int
}

// New creates a Scheduler. base is the delay before the first retry, max
// caps the delay growth, maxAttempts caps the number of retries per cycle.
func New(base, max time.Duration, maxAttempts int) *Scheduler {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Scheduler{base: base, max: max, maxAttempts: maxAttempts}
}

// Delay returns the backoff delay for attempt n (0-indexed):
// min(base * 2^n, max).
func (s *Scheduler) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	// Guard the shift: past 62 bits the duration overflows long before
	// any realistic cap is reached.
	if n >= 62 {
		return s.max
	}
	d := s.base << uint(n)
	if d <= 0 || d > s.max {
		return s.max
	}
	return d
}

// Next returns the delay to wait before the next attempt and consumes one
// attempt from the budget. ok is false once the ceiling is exhausted.
func (s *Scheduler) Next() (delay time.Duration, ok bool) {
	if s.attempt >= s.maxAttempts {
		return 0, false
	}
	delay = s.Delay(s.attempt)
	s.attempt++
	return delay, true
}

// Reset restores the full attempt budget. Called after a successful
// reconnect.
func (s *Scheduler) Reset() {
	s.attempt = 0
}

// Attempt returns the number of attempts consumed in this cycle.
func (s *Scheduler) Attempt() int {
	return s.attempt
}
