package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrMiss is returned by Store.Get for absent or expired keys.
var ErrMiss = errors.New("projection: cache miss")

// Store holds short-lived derived state: cached QR identities and refresh
// token revocations. Redis backs it in production; a zero ttl never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// purgeEvery is how many writes the in-memory store accepts between expiry sweeps.
const purgeEvery = 1024

// InMemoryStore is the single-process Store used when no Redis is configured.
type InMemoryStore struct {
	mu     sync.Mutex
	items  map[string]item
	writes int
	now    func() time.Time
}

type item struct {
	data     []byte
	deadline time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.deadline.IsZero() && !now.Before(it.deadline)
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]item), now: time.Now}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if ok && it.expired(s.now()) {
		delete(s.items, key)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMiss, key)
	}
	out := make([]byte, len(it.data))
	copy(out, it.data)
	return out, nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	it := item{data: append([]byte(nil), value...)}
	if ttl > 0 {
		it.deadline = now.Add(ttl)
	}
	s.items[key] = it

	s.writes++
	if s.writes >= purgeEvery {
		s.writes = 0
		s.purge(now)
	}
	return nil
}

func (s *InMemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	return err == nil, err
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of live entries.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(s.now())
	return len(s.items)
}

func (s *InMemoryStore) purge(now time.Time) {
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
		}
	}
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, store Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, data, ttl)
}

// GetJSON loads key into dest. Misses wrap ErrMiss.
func GetJSON(ctx context.Context, store Store, key string, dest any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
