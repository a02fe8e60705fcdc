package ratelimiter

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

// FixedWindowRateLimiter admits limit calls per key in each aligned window.
type FixedWindowRateLimiter struct {
	mu     sync.Mutex
	counts map[string]*window
	limit  int
	window time.Duration
	clock  clockwork.Clock
	done   chan struct{}
}

type window struct {
	count   int
	resetAt time.Time
}

func NewFixedWindowRateLimiter(limit int, size time.Duration, clock clockwork.Clock) *FixedWindowRateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rl := &FixedWindowRateLimiter{
		counts: make(map[string]*window),
		limit:  limit,
		window: size,
		clock:  clock,
		done:   make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Allow counts one call for key. When the window is used up it reports how
// long until the next one opens.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.counts[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Truncate(rl.window).Add(rl.window)}
		rl.counts[key] = w
	}
	if w.count >= rl.limit {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	ticker := rl.clock.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.Chan():
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.clock.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.counts {
		if !now.Before(w.resetAt) {
			delete(rl.counts, key)
		}
	}
}

func (rl *FixedWindowRateLimiter) Close() {
	close(rl.done)
}
