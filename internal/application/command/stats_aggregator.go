package command

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/internal/domain/user"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/retry"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS AGGREGATOR
// Maintains the lifetime UserStats record. Each update is a
// load-apply-save cycle guarded by the record version; a lost race
// reloads and reapplies instead of dropping an increment.
// ══════════════════════════════════════════════════════════════════════════════

// StatsAggregator folds submissions into UserStats.
type StatsAggregator struct {
	users   user.Repository
	stats   stats.Repository
	cal     timeutil.Calendar
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewStatsAggregator creates the aggregator.
func NewStatsAggregator(users user.Repository, statsRepo stats.Repository, cal timeutil.Calendar, log *logger.Logger) *StatsAggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &StatsAggregator{
		users:   users,
		stats:   statsRepo,
		cal:     cal,
		retrier: retry.New(retry.ConflictPolicy(shared.IsConflict)),
		log:     log.With(logger.Component("stats_aggregator")),
	}
}

// RecordSubmission applies sub and advances the streak as of today.
// When the owner does not exist a warning is logged and (nil, nil) is returned:
// the submission stays recorded and the stats are left stale.
func (a *StatsAggregator) RecordSubmission(ctx context.Context, sub *submission.Submission) (*stats.UserStats, error) {
	if _, err := a.users.FindByID(ctx, sub.UserID); err != nil {
		if shared.IsNotFound(err) {
			a.log.Warn("stats update skipped: user not found",
				logger.UserID(sub.UserID.String()),
				logger.SubmissionID(sub.ID.String()),
			)
			return nil, nil
		}
		return nil, err
	}

	return a.update(ctx, sub.UserID, func(s *stats.UserStats) {
		now := a.cal.Now()
		s.RecordSubmission(sub)
		s.UpdateStreak(now, a.cal)
		s.UpdatedAt = now
	})
}

// Get returns the user's stats, or zeroed stats when none exist yet.
func (a *StatsAggregator) Get(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	s, err := a.stats.Get(ctx, userID)
	if shared.IsNotFound(err) {
		return stats.New(userID), nil
	}
	return s, err
}

func (a *StatsAggregator) update(ctx context.Context, userID shared.UserID, apply func(*stats.UserStats)) (*stats.UserStats, error) {
	attempt := 0
	var result *stats.UserStats

	err := a.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++

		current, err := a.Get(ctx, userID)
		if err != nil {
			return err
		}
		apply(current)

		if err := a.stats.Save(ctx, current); err != nil {
			if shared.IsConflict(err) {
				a.log.Debug("stats version conflict, retrying",
					logger.UserID(userID.String()),
					logger.Attempt(attempt),
				)
			}
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
