// Package ratelimit bounds attempts per identifier within a fixed window.
// State is in-memory and per-process: multiple server instances do not
// share counters.
package ratelimit

import (
	"sync"
	"time"
)

type entry struct {
	count       int
	windowStart time.Time
}

type Limiter struct {
	mu          sync.Mutex
	attempts    map[string]*entry
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

func New(maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		attempts:    make(map[string]*entry),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// IsAllowed records one attempt for id and reports whether it is within
// the cap. The window is fixed, starting at the first attempt; once it
// elapses the next attempt opens a fresh window.
func (l *Limiter) IsAllowed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.attempts[id]
	if !ok || now.Sub(e.windowStart) > l.window {
		l.attempts[id] = &entry{count: 1, windowStart: now}
		return true
	}
	if e.count >= l.maxAttempts {
		return false
	}
	e.count++
	return true
}

// Reset clears all recorded attempts for id, typically after a
// successful authentication.
func (l *Limiter) Reset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, id)
}
