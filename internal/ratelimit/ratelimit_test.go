package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(maxAttempts int, window time.Duration) (*Limiter, *time.Time) {
	l := New(maxAttempts, window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterCapsAttemptsWithinWindow(t *testing.T) {
	l, _ := newTestLimiter(5, 15*time.Minute)

	for i := 0; i < 5; i++ {
		require.True(t, l.IsAllowed("10.0.0.1"), "attempt %d should be allowed", i+1)
	}
	require.False(t, l.IsAllowed("10.0.0.1"), "6th attempt within window must be rejected")
}

func TestLimiterWindowExpiry(t *testing.T) {
	l, now := newTestLimiter(5, 15*time.Minute)

	for i := 0; i < 6; i++ {
		l.IsAllowed("10.0.0.1")
	}
	require.False(t, l.IsAllowed("10.0.0.1"))

	*now = now.Add(15*time.Minute + time.Millisecond)
	require.True(t, l.IsAllowed("10.0.0.1"), "attempt after window expiry starts a new window")

	// Fresh window: the cap applies again from 1.
	for i := 0; i < 4; i++ {
		require.True(t, l.IsAllowed("10.0.0.1"))
	}
	require.False(t, l.IsAllowed("10.0.0.1"))
}

func TestLimiterReset(t *testing.T) {
	l, _ := newTestLimiter(3, time.Hour)

	for i := 0; i < 4; i++ {
		l.IsAllowed("client-a")
	}
	require.False(t, l.IsAllowed("client-a"))

	l.Reset("client-a")
	require.True(t, l.IsAllowed("client-a"), "reset must clear exhausted identifier")
}

func TestLimiterIdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	require.True(t, l.IsAllowed("a"))
	require.True(t, l.IsAllowed("a"))
	require.False(t, l.IsAllowed("a"))
	require.True(t, l.IsAllowed("b"))
}

func TestLimiterConcurrentAttemptsDoNotExceedCap(t *testing.T) {
	l := New(10, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.IsAllowed("same") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, allowed, "concurrent attempts must not be admitted past the cap")
}
