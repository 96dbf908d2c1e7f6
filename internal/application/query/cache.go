// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/retry"
)

var tracer = otel.Tracer("github.com/prephub/prephub-analytics/internal/application/query")

// storageReads retries computes that failed on an unavailable store.
var storageReads = retry.New(retry.TransientReadPolicy(shared.IsRetryable))

// retried wraps compute in storageReads.
func retried[T any](log *logger.Logger, key string, compute func(context.Context) (*T, error)) func(context.Context) (*T, error) {
	r := storageReads.OnRetry(func(attempt int, err error, delay time.Duration) {
		log.Debug("storage read failed, retrying",
			logger.CacheKey(key),
			logger.Attempt(attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})
	return func(ctx context.Context) (*T, error) {
		return retry.Value(ctx, r, compute)
	}
}

// ReadCache is an advisory memo of query results.
// Get reports a miss as (false, nil); any error means the cache is unhealthy.
type ReadCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheTTLs configures how long each view is memoized. Zero disables caching of that view.
type CacheTTLs struct {
	Dashboard     time.Duration
	Leaderboard   time.Duration
	Position      time.Duration
	FilterOptions time.Duration
}

// DefaultCacheTTLs returns the stock TTLs.
func DefaultCacheTTLs() CacheTTLs {
	return CacheTTLs{
		Dashboard:     5 * time.Minute,
		Leaderboard:   60 * time.Second,
		Position:      60 * time.Second,
		FilterOptions: 10 * time.Minute,
	}
}

// readThroughCache computes misses itself. compute errors are returned
// unchanged; any other error is a cache fault.
type readThroughCache interface {
	GetOrCompute(ctx context.Context, key string, dest any, ttl time.Duration, compute func(context.Context) (any, error)) (bool, error)
}

// getOrCompute reads key through c. Cache faults never fail the request:
// a read error bypasses the cache entirely, a write error is only logged.
// Errors from compute are returned and never cached; transient storage
// errors are retried first.
func getOrCompute[T any](
	ctx context.Context,
	c ReadCache,
	log *logger.Logger,
	key string,
	ttl time.Duration,
	compute func(context.Context) (*T, error),
) (*T, error) {
	compute = retried(log, key, compute)
	if c == nil || ttl <= 0 {
		return compute(ctx)
	}
	rt, ok := c.(readThroughCache)
	if !ok {
		return lookup(ctx, c, log, key, ttl, nil, compute)
	}

	var (
		cached     T
		computed   *T
		computeErr error
	)
	hit, err := rt.GetOrCompute(ctx, key, &cached, ttl, func(ctx context.Context) (any, error) {
		computed, computeErr = compute(ctx)
		return computed, computeErr
	})
	switch {
	case computeErr != nil:
		return nil, computeErr
	case err != nil && computed != nil:
		log.Warn("cache write failed", logger.CacheKey(key), logger.Err(err))
		return computed, nil
	case err != nil:
		log.Warn("cache read failed, bypassing", logger.CacheKey(key), logger.Err(err))
		return compute(ctx)
	case hit:
		return &cached, nil
	}
	return computed, nil
}

// getOrComputeFresh is getOrCompute with a validity check on hits.
// A hit that fresh rejects is recomputed and overwritten.
func getOrComputeFresh[T any](
	ctx context.Context,
	c ReadCache,
	log *logger.Logger,
	key string,
	ttl time.Duration,
	fresh func(*T) bool,
	compute func(context.Context) (*T, error),
) (*T, error) {
	compute = retried(log, key, compute)
	if c == nil || ttl <= 0 {
		return compute(ctx)
	}
	return lookup(ctx, c, log, key, ttl, fresh, compute)
}

func lookup[T any](
	ctx context.Context,
	c ReadCache,
	log *logger.Logger,
	key string,
	ttl time.Duration,
	fresh func(*T) bool,
	compute func(context.Context) (*T, error),
) (*T, error) {
	var cached T
	hit, err := c.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("cache read failed, bypassing", logger.CacheKey(key), logger.Err(err))
		return compute(ctx)
	}
	if hit {
		if fresh == nil || fresh(&cached) {
			return &cached, nil
		}
		log.Debug("stale cache entry", logger.CacheKey(key))
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		log.Warn("cache write failed", logger.CacheKey(key), logger.Err(err))
	}
	return v, nil
}
