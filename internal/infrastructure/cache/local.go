package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// Common errors.
var (
	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("cache: key cannot be empty")
	// ErrSerialization is returned when a value cannot be encoded or decoded.
	ErrSerialization = errors.New("cache: serialization failed")
)

// Local is a JSON read cache over TTLCache.
// Values are stored encoded so callers never share mutable results.
type Local struct {
	items *TTLCache[string, []byte]
}

// NewLocal creates a process-local cache.
func NewLocal(clock timeutil.Clock) *Local {
	return &Local{items: NewTTLCache[string, []byte](clock)}
}

// Get decodes the cached value into dest. Reports false on miss.
func (l *Local) Get(ctx context.Context, key string, dest any) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	data, ok := l.items.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		l.items.Delete(key)
		return false, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return true, nil
}

// Set encodes and stores value.
func (l *Local) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	l.items.Set(key, data, ttl)
	return nil
}

// GetOrCompute decodes the cached value into dest, or runs compute and
// stores its encoded result. Reports whether dest was filled from the cache.
// compute errors are returned unchanged and nothing is stored.
func (l *Local) GetOrCompute(ctx context.Context, key string, dest any, ttl time.Duration, compute func(context.Context) (any, error)) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	missed := false
	data, err := l.items.GetOrSet(key, func() ([]byte, error) {
		missed = true
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		return b, nil
	}, ttl)
	if err != nil || missed {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		l.items.Delete(key)
		return false, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return true, nil
}

// Delete removes keys.
func (l *Local) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		l.items.Delete(k)
	}
	return nil
}

// Clear drops everything.
func (l *Local) Clear() {
	l.items.Clear()
}

// Sweep reclaims expired entries.
func (l *Local) Sweep(ctx context.Context) (int, error) {
	return l.items.Sweep(), nil
}

// Len returns the number of stored entries.
func (l *Local) Len() int {
	return l.items.Len()
}
