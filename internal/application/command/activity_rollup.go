package command

import (
	"context"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/retry"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY ROLLUP
// Maintains one DailyActivity per (user, local day). Records are created
// lazily and never deleted; all events of one call are persisted together.
// ══════════════════════════════════════════════════════════════════════════════

// ActivityRollup applies activity events to day records.
type ActivityRollup struct {
	days    activity.Repository
	cal     timeutil.Calendar
	goals   activity.GoalThresholds
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewActivityRollup creates the rollup service.
func NewActivityRollup(days activity.Repository, cal timeutil.Calendar, goals activity.GoalThresholds, log *logger.Logger) *ActivityRollup {
	if log == nil {
		log = logger.Nop()
	}
	return &ActivityRollup{
		days:    days,
		cal:     cal,
		goals:   goals,
		retrier: retry.New(retry.ConflictPolicy(shared.IsConflict)),
		log:     log.With(logger.Component("activity_rollup")),
	}
}

// GetOrCreate returns the stored record of the day containing date, or a new
// zeroed record with default goals. A new record is not persisted until Apply.
func (r *ActivityRollup) GetOrCreate(ctx context.Context, userID shared.UserID, date time.Time) (*activity.DailyActivity, error) {
	day := r.cal.StartOfDay(date)
	d, err := r.days.Get(ctx, userID, day)
	if shared.IsNotFound(err) {
		return activity.New(userID, day, r.goals), nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Apply appends events to the day record of date in one persist.
func (r *ActivityRollup) Apply(ctx context.Context, userID shared.UserID, date time.Time, events []activity.PendingEvent) (*activity.DailyActivity, error) {
	for _, e := range events {
		if !e.Type.IsValid() {
			return nil, shared.ErrUnknownEventType
		}
	}

	attempt := 0
	var result *activity.DailyActivity

	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		attempt++

		d, err := r.GetOrCreate(ctx, userID, date)
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := d.AddActivity(e.Type, e.At, e.Details); err != nil {
				return retry.Permanent(err)
			}
		}

		now := r.cal.Now()
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		d.UpdatedAt = now

		if err := r.days.Save(ctx, d); err != nil {
			if shared.IsConflict(err) {
				r.log.Debug("daily activity version conflict, retrying",
					logger.UserID(userID.String()),
					logger.Attempt(attempt),
				)
			}
			return err
		}
		result = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordSubmission applies the events a submission produces to today's record.
func (r *ActivityRollup) RecordSubmission(ctx context.Context, sub *submission.Submission) (*activity.DailyActivity, error) {
	now := r.cal.Now()
	return r.Apply(ctx, sub.UserID, now, activity.SubmissionEvents(sub, now))
}

// RecordSession logs a login or logout on today's record.
func (r *ActivityRollup) RecordSession(ctx context.Context, userID shared.UserID, t activity.EventType) (*activity.DailyActivity, error) {
	if t != activity.EventLogin && t != activity.EventLogout {
		return nil, shared.ErrUnknownEventType
	}
	now := r.cal.Now()
	return r.Apply(ctx, userID, now, []activity.PendingEvent{{Type: t, At: now}})
}

// Range returns the user's records for [from, to) at day granularity.
func (r *ActivityRollup) Range(ctx context.Context, userID shared.UserID, from, to time.Time) ([]*activity.DailyActivity, error) {
	return r.days.Range(ctx, userID, r.cal.StartOfDay(from), r.cal.StartOfDay(to))
}
