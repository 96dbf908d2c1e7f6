// Package circuitbreaker stops calling an optional dependency after it keeps
// failing. The shared read cache sits behind one: while Redis is down every
// request would otherwise wait for a timeout before recomputing anyway.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// State of a breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen refuses calls until the cool-down passes.
	StateOpen
	// StateHalfOpen lets a few probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling through while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrProbeInFlight is returned while the half-open probe slots are taken.
	ErrProbeInFlight = errors.New("circuit breaker probe in flight")
)

// Settings tune a breaker. Zero thresholds and durations take the CacheSettings values.
type Settings struct {
	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int
	// SuccessThreshold consecutive probe successes close a half-open breaker.
	SuccessThreshold int
	// CoolDown is how long an open breaker refuses calls.
	CoolDown time.Duration
	// MaxProbes bounds concurrent calls while half-open.
	MaxProbes int

	// IsFailure decides which errors count against the dependency.
	// Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)

	Clock timeutil.Clock
}

// CacheSettings trip fast and probe again soon: while the cache is out
// reads only cost a recomputation. Caller cancellation is not a cache fault.
func CacheSettings() Settings {
	return Settings{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		CoolDown:         15 * time.Second,
		MaxProbes:        1,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
}

func (s Settings) withDefaults() Settings {
	d := CacheSettings()
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = d.FailureThreshold
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = d.SuccessThreshold
	}
	if s.CoolDown <= 0 {
		s.CoolDown = d.CoolDown
	}
	if s.MaxProbes <= 0 {
		s.MaxProbes = d.MaxProbes
	}
	if s.Clock == nil {
		s.Clock = timeutil.SystemClock{}
	}
	return s
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	name string
	cfg  Settings

	mu        sync.Mutex
	state     State
	failures  int // consecutive, while closed
	successes int // consecutive, while half-open
	probes    int // in flight, while half-open
	openedAt  time.Time
}

// New creates a closed breaker.
func New(name string, s Settings) *CircuitBreaker {
	return &CircuitBreaker{name: name, cfg: s.withDefaults()}
}

// Execute calls fn unless the breaker refuses, and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.cfg.Clock.Now().Sub(cb.openedAt) < cb.cfg.CoolDown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.probes >= cb.cfg.MaxProbes {
			return ErrProbeInFlight
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err))

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		if cb.probes > 0 {
			cb.probes--
		}
		if failed {
			cb.open()
			return
		}
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
	// An outcome that lands while open belongs to a call admitted earlier.
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.cfg.Clock.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.failures, cb.successes, cb.probes = 0, 0, 0
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// State reports the current state. An open breaker past its cool-down still
// reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name identifies the guarded dependency.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}
