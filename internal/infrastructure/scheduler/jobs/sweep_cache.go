// Package jobs contains the scheduled maintenance jobs of PrepHub analytics.
package jobs

import (
	"context"

	"github.com/prephub/prephub-analytics/pkg/logger"
)

// Sweeper drops expired entries and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepCacheJob evicts expired entries from the in-process cache.
// Reads already evict lazily; the sweep bounds memory held by keys nobody reads again.
type SweepCacheJob struct {
	cache  Sweeper
	logger *logger.Logger
}

// NewSweepCacheJob creates the job.
func NewSweepCacheJob(cache Sweeper, log *logger.Logger) *SweepCacheJob {
	if log == nil {
		log = logger.Nop()
	}
	return &SweepCacheJob{cache: cache, logger: log.With(logger.Component("sweep_cache"))}
}

// Name returns the job name.
func (j *SweepCacheJob) Name() string { return "sweep_cache" }

// Description returns a human-readable description.
func (j *SweepCacheJob) Description() string { return "evicts expired read-cache entries" }

// Run executes one sweep.
func (j *SweepCacheJob) Run(ctx context.Context) error {
	removed, err := j.cache.Sweep(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.logger.Debug("expired cache entries evicted", logger.Int("removed", removed))
	}
	return nil
}
