package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func TestAllow_BlocksAfterAttempts(t *testing.T) {
	l := New(8, 5*time.Minute)
	now, clock := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = clock

	for i := 0; i < 8; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "other keys are independent")

	*now = now.Add(5 * time.Minute)
	for i := 0; i < 8; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "attempt %d after window", i+1)
	}
}

func TestAllow_RefillsOneAttemptPerInterval(t *testing.T) {
	l := New(8, 5*time.Minute)
	now, clock := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = clock

	for i := 0; i < 8; i++ {
		assert.True(t, l.Allow("k"))
	}
	assert.False(t, l.Allow("k"))

	*now = now.Add(30 * time.Second)
	assert.False(t, l.Allow("k"), "interval is window/attempts = 37.5s")

	*now = now.Add(8 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestReset(t *testing.T) {
	l := New(1, time.Hour)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	assert.Nil(t, New(0, time.Minute))
	assert.True(t, l.Allow("anything"))
	l.Reset("anything")
}

func TestCleanupDropsIdleEntries(t *testing.T) {
	l := New(2, time.Minute)
	now, clock := fixedClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	l.now = clock

	l.Allow("stale")
	*now = now.Add(time.Hour)
	for i := 0; i < cleanupEveryN; i++ {
		l.Allow(fmt.Sprintf("fresh-%d", i))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries["stale"]
	assert.False(t, ok)
}
