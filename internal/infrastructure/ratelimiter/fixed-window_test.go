package ratelimiter

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestFixedWindow_LimitsPerKey(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC))
	rl := NewFixedWindowRateLimiter(2, time.Second, clock)
	defer rl.Close()

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)

	clock.Advance(250 * time.Millisecond)
	ok, retry := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 750*time.Millisecond, retry)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "other keys have their own window")

	clock.Advance(750 * time.Millisecond)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestFixedWindow_Cleanup(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC))
	rl := NewFixedWindowRateLimiter(1, time.Second, clock)
	defer rl.Close()

	rl.Allow("a")
	clock.Advance(2 * time.Second)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.counts)
}
