package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scorekeep/arena/internal/domain"
)

// sweepThreshold is the tracked-key count at which Allow drops idle keys.
const sweepThreshold = 10000

// RateLimiter counts hits per key over a sliding window. The auth and QR
// verification routes key it by client IP.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit hits per key within window. A limit <= 0
// disables the limiter.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records a hit for key. When the key is over its limit the hit is not
// recorded and the returned duration is how long until the oldest hit leaves
// the window.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if len(rl.hits) >= sweepThreshold {
		rl.sweep(cutoff)
	}

	recent := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}
	rl.hits[key] = append(recent, now)
	return true, 0
}

// Check is Allow in guard form.
func (rl *RateLimiter) Check(_ context.Context, key string) domain.GuardResult {
	if ok, _ := rl.Allow(key); !ok {
		return domain.GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("too many requests: limit is %d per %s", rl.limit, rl.window),
			Guard:   "rate_limiter",
		}
	}
	return domain.GuardResult{Allowed: true}
}

// Sweep forgets keys with no hits inside the window and returns how many
// remain tracked.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(rl.now().Add(-rl.window))
	return len(rl.hits)
}

func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, hits := range rl.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(rl.hits, key)
		}
	}
}
