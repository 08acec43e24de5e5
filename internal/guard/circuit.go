package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/scorekeep/arena/internal/domain"
)

// CircuitState is the position of one circuit.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned by Execute when the circuit rejects the call.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitBreaker stops calling a failing dependency (QR image uploads) for a
// cooldown after threshold consecutive failures. After the cooldown a single
// probe is let through; its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuit
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

type circuit struct {
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker opens a circuit after threshold consecutive failures and
// probes again once cooldown has passed.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) get(key string) *circuit {
	c, ok := cb.circuits[key]
	if !ok {
		c = &circuit{}
		cb.circuits[key] = c
	}
	return c
}

// Check reports whether a call for key may proceed. Allowing a call on an
// open circuit past its cooldown claims the probe slot.
func (cb *CircuitBreaker) Check(_ context.Context, key string) domain.GuardResult {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	if c.state == CircuitOpen {
		if wait := c.openedAt.Add(cb.cooldown).Sub(cb.now()); wait > 0 {
			return domain.GuardResult{
				Reason: fmt.Sprintf("%s circuit open, retry in %s", key, wait.Round(time.Second)),
				Guard:  "circuit_breaker",
			}
		}
		c.state = CircuitHalfOpen
		c.probing = false
	}
	if c.state == CircuitHalfOpen {
		if c.probing {
			return domain.GuardResult{
				Reason: fmt.Sprintf("%s circuit half-open, probe in flight", key),
				Guard:  "circuit_breaker",
			}
		}
		c.probing = true
	}
	return domain.GuardResult{Allowed: true}
}

// RecordSuccess closes the circuit for key.
func (cb *CircuitBreaker) RecordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	c.state = CircuitClosed
	c.failures = 0
	c.probing = false
}

// RecordFailure counts a failure for key. A failed probe reopens the circuit
// immediately.
func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.get(key)
	c.failures++
	if c.state == CircuitHalfOpen || c.failures >= cb.threshold {
		c.state = CircuitOpen
		c.openedAt = cb.now()
		c.probing = false
	}
}

// Execute runs fn if the circuit for key allows it and records the outcome.
// Context cancellation is not counted against the dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, key string, fn func(context.Context) error) error {
	if res := cb.Check(ctx, key); !res.Allowed {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, res.Reason)
	}
	err := fn(ctx)
	switch {
	case err == nil:
		cb.RecordSuccess(key)
	case errors.Is(err, context.Canceled):
		cb.mu.Lock()
		cb.get(key).probing = false
		cb.mu.Unlock()
	default:
		cb.RecordFailure(key)
	}
	return err
}

// State reports the current state of the circuit for key.
func (cb *CircuitBreaker) State(key string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if c, ok := cb.circuits[key]; ok {
		return c.state
	}
	return CircuitClosed
}
