package ratelimit

import (
	"sync"
	"time"
)

// Limiter implements per-connection sliding-window rate limiting with a
// penalty lockout. Counting is lazy: there are no background timers, and
// penalty expiry is discovered on the connection's next attempt.
type Limiter struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	penalty   time.Duration
	states    map[string]*state
}

// state tracks one connection's window. Counters are monotonic within a
// window and reset only by elapsed time, never by inbound traffic shape.
type state struct {
	windowStart  time.Time
	count        int
	penaltyUntil time.Time
}

// Result reports the outcome of a rate check. RetryAfter is the remaining
// cooldown in whole seconds, rounded up; zero when allowed.
type Result struct {
	Allowed    bool
	RetryAfter int
}

// NewLimiter creates a limiter allowing threshold actions per window; a
// connection exceeding the threshold is locked out for the penalty duration.
func NewLimiter(window time.Duration, threshold int, penalty time.Duration) *Limiter {
	return &Limiter{
		window:    window,
		threshold: threshold,
		penalty:   penalty,
		states:    make(map[string]*state),
	}
}

// Check records an attempted action for connID at the given instant and
// reports whether it is allowed. A denial never resets the window, so a
// penalized connection stays locked out for the full penalty duration even
// if it keeps sending.
func (l *Limiter) Check(connID string, now time.Time) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[connID]
	if !ok {
		l.states[connID] = &state{windowStart: now, count: 1}
		return Result{Allowed: true}
	}

	if now.Before(st.penaltyUntil) {
		return Result{Allowed: false, RetryAfter: ceilSeconds(st.penaltyUntil.Sub(now))}
	}

	if now.Sub(st.windowStart) > l.window {
		st.windowStart = now
		st.count = 1
	} else {
		st.count++
	}

	if st.count > l.threshold {
		st.penaltyUntil = now.Add(l.penalty)
		return Result{Allowed: false, RetryAfter: ceilSeconds(l.penalty)}
	}

	return Result{Allowed: true}
}

// Forget discards state for a departed connection. Stale entries are harmless
// but reclaiming them keeps the map bounded by live connections.
func (l *Limiter) Forget(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.states, connID)
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
