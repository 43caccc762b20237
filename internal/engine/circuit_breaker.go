package engine

import (
	"sync"
	"time"

	"github.com/rendis/evoflow/pkg/schema"
)

// BreakerState is the state of one circuit.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig tunes the per-step-type circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	FailureThreshold int
	// Cooldown is how long an open circuit rejects calls before allowing a
	// half-open probe.
	Cooldown time.Duration
}

// DefaultBreakerConfig matches the engine defaults: open after 5 consecutive
// failures, probe again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 30 * time.Second}
}

type circuit struct {
	state         BreakerState
	failures      int
	lastFailure   time.Time
	probeInFlight bool
}

// CircuitBreaker tracks failures per step type and rejects executions for
// types that keep failing. One breaker instance is shared across executions;
// the optimizer's parallel runs feed the same circuits.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	circuits map[string]*circuit
	now      func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:      cfg,
		circuits: make(map[string]*circuit),
		now:      time.Now,
	}
}

// Allow reports whether an execution of the given step type may proceed.
// Returns a CIRCUIT_OPEN error while the circuit is open and cooling down.
func (b *CircuitBreaker) Allow(stepType string) error {
	if b == nil || b.cfg.FailureThreshold <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[stepType]
	if c == nil || c.state == BreakerClosed {
		return nil
	}

	if c.state == BreakerOpen {
		if b.now().Sub(c.lastFailure) < b.cfg.Cooldown {
			return schema.NewErrorf(schema.ErrCodeCircuitOpen,
				"circuit open for step type '%s'", stepType).
				WithDetails(map[string]any{
					"failures": c.failures,
					"cooldown": b.cfg.Cooldown.String(),
				})
		}
		c.state = BreakerHalfOpen
		c.probeInFlight = false
	}

	// Half-open: admit a single probe, reject the rest until it resolves.
	if c.probeInFlight {
		return schema.NewErrorf(schema.ErrCodeCircuitOpen,
			"circuit half-open for step type '%s', probe in flight", stepType)
	}
	c.probeInFlight = true
	return nil
}

// RecordSuccess closes the circuit for the step type.
func (b *CircuitBreaker) RecordSuccess(stepType string) {
	if b == nil || b.cfg.FailureThreshold <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[stepType]
	if c == nil {
		return
	}
	c.state = BreakerClosed
	c.failures = 0
	c.probeInFlight = false
}

// RecordFailure counts a failure; reaching the threshold opens the circuit.
func (b *CircuitBreaker) RecordFailure(stepType string) {
	if b == nil || b.cfg.FailureThreshold <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuits[stepType]
	if c == nil {
		c = &circuit{}
		b.circuits[stepType] = c
	}

	c.failures++
	c.lastFailure = b.now()
	c.probeInFlight = false
	if c.state == BreakerHalfOpen || c.failures >= b.cfg.FailureThreshold {
		c.state = BreakerOpen
	}
}

// State returns the current state of the circuit for a step type.
func (b *CircuitBreaker) State(stepType string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c := b.circuits[stepType]; c != nil {
		return c.state
	}
	return BreakerClosed
}
