package jobs

import (
	"context"
	"errors"

	"github.com/prephub/prephub-analytics/internal/application/query"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM LEADERBOARD JOB
// Precomputes the hottest reads: the first page per timeframe, the top
// performers and the filter options. One failed read does not stop the rest.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardReader is the part of analytics.Service the warm-up needs.
type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context, q query.GetLeaderboardQuery) (*leaderboard.Page, error)
	GetTopPerformers(ctx context.Context, f query.FilterParams, limit int) (*query.TopPerformersResult, error)
	GetFilterOptions(ctx context.Context) (*leaderboard.FilterOptions, error)
}

// WarmLeaderboardJob fills the leaderboard read cache.
type WarmLeaderboardJob struct {
	reader     LeaderboardReader
	timeframes []leaderboard.Timeframe
	logger     *logger.Logger
}

// NewWarmLeaderboardJob creates the job covering every timeframe.
func NewWarmLeaderboardJob(reader LeaderboardReader, log *logger.Logger) *WarmLeaderboardJob {
	if log == nil {
		log = logger.Nop()
	}
	return &WarmLeaderboardJob{
		reader: reader,
		timeframes: []leaderboard.Timeframe{
			leaderboard.TimeframeAll,
			leaderboard.TimeframeMonth,
			leaderboard.TimeframeWeek,
			leaderboard.TimeframeToday,
		},
		logger: log.With(logger.Component("warm_leaderboard")),
	}
}

// Name returns the job name.
func (j *WarmLeaderboardJob) Name() string { return "warm_leaderboard" }

// Description returns a human-readable description.
func (j *WarmLeaderboardJob) Description() string {
	return "precomputes first leaderboard pages, top performers and filter options"
}

// Run warms the cache and joins the errors of the reads that failed.
func (j *WarmLeaderboardJob) Run(ctx context.Context) error {
	var errs []error

	for _, tf := range j.timeframes {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := query.FilterParams{Timeframe: string(tf)}

		if _, err := j.reader.GetLeaderboard(ctx, query.GetLeaderboardQuery{FilterParams: f, Page: 1}); err != nil {
			errs = append(errs, err)
		}
		if _, err := j.reader.GetTopPerformers(ctx, f, leaderboard.DefaultTopPerformers); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := j.reader.GetFilterOptions(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		j.logger.Warn("leaderboard warm-up incomplete", logger.Int("failures", len(errs)))
		return errors.Join(errs...)
	}
	return nil
}
