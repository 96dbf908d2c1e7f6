package cache

import (
	"context"
	"time"

	"github.com/prephub/prephub-analytics/pkg/circuitbreaker"
	"github.com/prephub/prephub-analytics/pkg/logger"
)

// Backend is the read cache contract shared by Local and the Redis adapter.
type Backend interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Guarded wraps a Backend in a circuit breaker. While the breaker is open
// calls fail immediately with circuitbreaker.ErrCircuitOpen and callers
// fall back to computing the value.
type Guarded struct {
	backend Backend
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuarded creates a guarded backend. A nil breaker gets CacheSettings.
func NewGuarded(backend Backend, breaker *circuitbreaker.CircuitBreaker, log *logger.Logger) *Guarded {
	if breaker == nil {
		if log == nil {
			log = logger.Nop()
		}
		settings := circuitbreaker.CacheSettings()
		settings.OnStateChange = func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit state changed",
				logger.Component(name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}
		breaker = circuitbreaker.New("read-cache", settings)
	}
	return &Guarded{backend: backend, breaker: breaker}
}

// Get reads through the breaker.
func (g *Guarded) Get(ctx context.Context, key string, dest any) (bool, error) {
	var hit bool
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		hit, err = g.backend.Get(ctx, key, dest)
		return err
	})
	return hit, err
}

// Set writes through the breaker.
func (g *Guarded) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.backend.Set(ctx, key, value, ttl)
	})
}

// Delete invalidates through the breaker.
func (g *Guarded) Delete(ctx context.Context, keys ...string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.backend.Delete(ctx, keys...)
	})
}

// State exposes the breaker state.
func (g *Guarded) State() circuitbreaker.State {
	return g.breaker.State()
}
