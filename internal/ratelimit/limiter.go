// Package ratelimit implements fixed-window request admission per identity.
//
// Counters are keyed by identity and quota class and reset when the window
// boundary passes; unused budget never carries over. Fixed windows admit
// short bursts around a boundary (up to twice the limit across two adjacent
// windows). That smoothing loss is accepted in exchange for constant state
// per identity; a sliding window or token bucket would be the upgrade path
// if it ever matters.
package ratelimit

import (
	"sync"
	"time"
)

// pruneInterval is the number of admissions between opportunistic sweeps of
// expired windows.
const pruneInterval = 256

// Quota is one limit class applied to a route.
type Quota struct {
	// Name distinguishes counters when one identity is subject to several
	// classes.
	Name string

	// Limit is the number of admissions per window.
	Limit int

	// Window is the fixed window duration.
	Window time.Duration
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int

	// RetryAfter is the time until the active window resets. Populated on
	// denial.
	RetryAfter time.Duration
}

type window struct {
	start    time.Time
	duration time.Duration
	count    int
}

// Limiter tracks fixed-window counters for every (identity, class) pair.
// Safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	admissions int

	// nowFunc is swapped in tests to step through window boundaries.
	nowFunc func() time.Time
}

// NewLimiter creates an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		nowFunc: time.Now,
	}
}

// Admit records one request for identity under q and reports whether it is
// within budget. The counter increment and the budget check are a single
// atomic step, so concurrent callers for the same identity never admit more
// than q.Limit requests per window.
func (l *Limiter) Admit(identity string, q Quota) Decision {
	now := l.nowFunc()
	key := q.Name + "|" + identity
	windowStart := now.Truncate(q.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.admissions++
	if l.admissions%pruneInterval == 0 {
		l.prune(now)
	}

	w := l.windows[key]
	if w == nil || !w.start.Equal(windowStart) {
		w = &window{start: windowStart, duration: q.Window}
		l.windows[key] = w
	}

	if w.count >= q.Limit {
		return Decision{
			Allowed:    false,
			Limit:      q.Limit,
			Remaining:  0,
			RetryAfter: windowStart.Add(q.Window).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     q.Limit,
		Remaining: q.Limit - w.count,
	}
}

// prune drops windows whose reset time has passed. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.start.Add(w.duration)) {
			delete(l.windows, key)
		}
	}
}
