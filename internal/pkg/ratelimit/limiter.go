package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const cleanupEveryN = 64

// Limiter is a token bucket per key: a burst of attempts calls, then one more
// every window/attempts. A client that keeps retrying gets roughly twice
// attempts in its first window and attempts per window after that. It is
// plain in-memory state: construct one per process and pass it to whoever
// needs it.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	opCount int
	now     func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New returns a limiter that refills one attempt every window/attempts and
// holds at most attempts. A non-positive argument disables limiting.
func New(attempts int, window time.Duration) *Limiter {
	if attempts <= 0 || window <= 0 {
		return nil
	}
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   rate.Every(window / time.Duration(attempts)),
		burst:   attempts,
		idleTTL: 2 * window,
		now:     time.Now,
	}
}

// Allow consumes one attempt for key and reports whether it was available.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)
	l.maybeCleanupLocked(now)
	return allowed
}

// Reset forgets the history for key.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

func (l *Limiter) maybeCleanupLocked(now time.Time) {
	l.opCount++
	if l.opCount%cleanupEveryN != 0 {
		return
	}
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.entries, key)
		}
	}
}
