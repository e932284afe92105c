// Package circuitbreaker guards a flaky dependency with a per-name breaker.
// The circuit is closed until FailureThreshold consecutive failures, open for
// Timeout, then half-open admitting up to MaxRequests probes at a time;
// SuccessThreshold consecutive probe successes close it again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker. Zero values fall back to the defaults noted.
type Config struct {
	FailureThreshold uint32        // consecutive failures that open the circuit (default 5)
	SuccessThreshold uint32        // consecutive half-open successes that close it (default 2)
	MaxRequests      uint32        // probes admitted at a time while half-open (default 1)
	Timeout          time.Duration // how long the circuit stays open (default 60s)
}

type CircuitBreaker struct {
	name string
	cfg  Config

	mu            sync.Mutex
	state         State
	generation    uint64
	inflight      uint32
	consecSuccess uint32
	consecFailure uint32
	openedUntil   time.Time
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &CircuitBreaker{name: name, cfg: cfg}
}

// Execute runs fn under the breaker. A panic counts as a failure and is
// re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.record(generation, false)
			panic(r)
		}
	}()

	err = fn()
	cb.record(generation, err == nil)
	return err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState(time.Now()) {
	case StateOpen:
		return cb.generation, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inflight >= cb.cfg.MaxRequests {
			return cb.generation, ErrTooManyRequests
		}
	}

	cb.inflight++
	return cb.generation, nil
}

// record books the outcome of an admitted request. Outcomes from a previous
// generation are stale and dropped.
func (cb *CircuitBreaker) record(generation uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentState(now)
	if cb.generation != generation {
		return
	}
	cb.inflight--

	if success {
		cb.consecSuccess++
		cb.consecFailure = 0
		if state == StateHalfOpen && cb.consecSuccess >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
		return
	}

	cb.consecFailure++
	cb.consecSuccess = 0
	if state == StateHalfOpen || cb.consecFailure >= cb.cfg.FailureThreshold {
		cb.transition(StateOpen, now)
	}
}

// currentState flips an expired open circuit to half-open. Callers hold mu.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && now.After(cb.openedUntil) {
		cb.transition(StateHalfOpen, now)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.generation++
	cb.inflight = 0
	cb.consecSuccess = 0
	cb.consecFailure = 0
	if to == StateOpen {
		cb.openedUntil = now.Add(cb.cfg.Timeout)
	}

	logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.currentState(time.Now())
}
