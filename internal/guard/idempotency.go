package guard

import (
	"context"
	"sync"
	"time"

	"github.com/scorekeep/arena/internal/domain"
)

// IdempotencyGuard remembers Idempotency-Key values for ttl. A key is
// reserved by Reserve, then either completed with the id of the record it
// produced or released with Remove when the request failed.
type IdempotencyGuard struct {
	mu     sync.Mutex
	keys   map[string]reservation
	ttl    time.Duration
	now    func() time.Time
	checks int
}

type reservation struct {
	recordID string // empty while the request is in flight
	expires  time.Time
}

// prune expired reservations every this many checks.
const idempotencyPruneEvery = 256

// NewIdempotencyGuard creates an in-memory guard whose keys expire after ttl.
func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		keys: make(map[string]reservation),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Reserve claims key in one critical section. A completed, unexpired key
// yields the id it produced; an in-flight key is rejected. The empty key is
// never tracked.
func (ig *IdempotencyGuard) Reserve(_ context.Context, key string) (string, domain.GuardResult) {
	if key == "" {
		return "", domain.GuardResult{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	now := ig.now()
	ig.checks++
	if ig.checks%idempotencyPruneEvery == 0 {
		for k, r := range ig.keys {
			if !now.Before(r.expires) {
				delete(ig.keys, k)
			}
		}
	}

	if r, ok := ig.keys[key]; ok && now.Before(r.expires) {
		if r.recordID != "" {
			return r.recordID, domain.GuardResult{Reason: "duplicate request: idempotency key already processed", Guard: "idempotency"}
		}
		return "", domain.GuardResult{Reason: "duplicate request: idempotency key still in flight", Guard: "idempotency"}
	}

	ig.keys[key] = reservation{expires: now.Add(ig.ttl)}
	return "", domain.GuardResult{Allowed: true}
}

// Check is Reserve without the recorded id.
func (ig *IdempotencyGuard) Check(ctx context.Context, key string) domain.GuardResult {
	_, res := ig.Reserve(ctx, key)
	return res
}

// Complete records the id produced for a reserved key and restarts its ttl.
func (ig *IdempotencyGuard) Complete(key, recordID string) {
	if key == "" {
		return
	}
	ig.mu.Lock()
	defer ig.mu.Unlock()
	ig.keys[key] = reservation{recordID: recordID, expires: ig.now().Add(ig.ttl)}
}

// Remove releases key so the request can be retried.
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.keys, key)
}

// Len reports how many keys are tracked, expired or not.
func (ig *IdempotencyGuard) Len() int {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	return len(ig.keys)
}
