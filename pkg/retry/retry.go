// Package retry re-runs operations that failed for a reason expected to pass:
// a lost optimistic version race on a write, or a transient storage fault on a read.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// PermanentError stops a retry loop even when the policy would retry its cause.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth another attempt. Do returns the cause.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Policy describes when and how fast to retry.
type Policy struct {
	// MaxAttempts counts the first attempt too.
	MaxAttempts int

	// Delay before retry n is InitialDelay * Multiplier^(n-1), capped at MaxDelay,
	// then moved by up to ±Jitter of itself.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64

	// RetryIf selects retryable errors. Nil retries nothing.
	RetryIf func(error) bool
}

// ConflictPolicy is for load-apply-save loops that lose a version race.
// Each attempt is one read and one conditional write, so retry soon and often:
// n racing writers need at most n-1 retries.
func ConflictPolicy(isConflict func(error) bool) Policy {
	return Policy{
		MaxAttempts:  10,
		InitialDelay: 2 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   1.8,
		Jitter:       0.5,
		RetryIf:      isConflict,
	}
}

// TransientReadPolicy is for read-only storage calls behind a query.
// The budget stays well under a request timeout.
func TransientReadPolicy(isTransient func(error) bool) Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2,
		Jitter:       0.2,
		RetryIf:      isTransient,
	}
}

// Retrier runs operations under a Policy.
type Retrier struct {
	policy  Policy
	onRetry func(attempt int, err error, delay time.Duration)
}

// New creates a Retrier. MaxAttempts below one is treated as one.
func New(p Policy) *Retrier {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return &Retrier{policy: p}
}

// OnRetry returns a copy of r that calls fn before sleeping ahead of each retry.
func (r *Retrier) OnRetry(fn func(attempt int, err error, delay time.Duration)) *Retrier {
	cp := *r
	cp.onRetry = fn
	return &cp
}

// MaxAttempts reports the attempt budget.
func (r *Retrier) MaxAttempts() int {
	return r.policy.MaxAttempts
}

// Do runs op until it succeeds, returns an error the policy does not retry,
// or the budget runs out. The last error is returned as is; a Permanent
// error is returned unwrapped. Cancellation before the first attempt
// returns ctx.Err(), later cancellation returns the last error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempt >= r.policy.MaxAttempts || r.policy.RetryIf == nil || !r.policy.RetryIf(err) {
			return err
		}

		delay := r.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

func (r *Retrier) backoff(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.policy.MaxDelay))
	if j := r.policy.Jitter; j > 0 {
		d += d * j * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Value runs op under r and returns its result.
func Value[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
