// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/prephub/prephub-analytics/internal/application/cachekey"
	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

var tracer = otel.Tracer("github.com/prephub/prephub-analytics/internal/application/command")

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SUBMISSION COMMAND
// Validates and persists one attempt, then updates the day rollup and
// lifetime stats. Both updates finish before the command returns; the user's
// dashboard cache entry is invalidated strictly after both.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSubmissionCommand contains the data to record a submission.
type RecordSubmissionCommand struct {
	// UserID is the owner of the attempt.
	UserID string

	// Payload is the raw attempt as received from the route handler.
	Payload submission.Payload
}

// RecordSubmissionResult contains the outcome.
type RecordSubmissionResult struct {
	// Submission is the durable record. Always set on success.
	Submission *submission.Submission

	// Stats is the updated lifetime record; nil when the update was skipped or failed.
	Stats *stats.UserStats

	// Today is the updated day rollup; nil when the update failed.
	Today *activity.DailyActivity

	// StatsUpdated and RollupUpdated report whether each derived view caught up.
	StatsUpdated  bool
	RollupUpdated bool

	Duration time.Duration
}

// CacheInvalidator removes cached entries.
type CacheInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
}

// RecordSubmissionHandler handles the RecordSubmission command.
type RecordSubmissionHandler struct {
	submissions submission.Repository
	stats       *StatsAggregator
	rollup      *ActivityRollup
	cache       CacheInvalidator
	cal         timeutil.Calendar
	log         *logger.Logger
}

// NewRecordSubmissionHandler creates the handler. cache may be nil.
func NewRecordSubmissionHandler(
	submissions submission.Repository,
	statsAggregator *StatsAggregator,
	rollup *ActivityRollup,
	cache CacheInvalidator,
	cal timeutil.Calendar,
	log *logger.Logger,
) *RecordSubmissionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RecordSubmissionHandler{
		submissions: submissions,
		stats:       statsAggregator,
		rollup:      rollup,
		cache:       cache,
		cal:         cal,
		log:         log.With(logger.Component("record_submission")),
	}
}

// Handle executes the command.
// Validation and persistence errors are returned. Once the submission is
// stored, derived-view failures are logged and reported in the result flags:
// the submission is the source of truth and is never rolled back.
func (h *RecordSubmissionHandler) Handle(ctx context.Context, cmd RecordSubmissionCommand) (*RecordSubmissionResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "RecordSubmission")
	defer span.End()

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		span.SetStatus(codes.Error, "invalid command")
		return nil, err
	}

	sub, err := submission.New(userID, cmd.Payload, h.cal.Now())
	if err != nil {
		span.SetStatus(codes.Error, "invalid submission")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("submission.category", sub.Category.String()),
	)

	if err := h.submissions.Create(ctx, sub); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, shared.WrapError("submission", "Create", shared.ErrServiceUnavailable, "failed to persist submission", err)
	}

	// The write is durable from here on; a disconnected caller must not abort the derived updates.
	ctx = context.WithoutCancel(ctx)
	log := h.log.With(logger.UserID(userID.String()), logger.SubmissionID(sub.ID.String()))

	result := &RecordSubmissionResult{Submission: sub}

	// The rollup goes first. The stats version stamps dashboard entries, so
	// a reader that sees the new version also sees the new rollup.
	if today, err := h.rollup.RecordSubmission(ctx, sub); err != nil {
		log.Error("failed to update daily activity", logger.Err(err))
	} else {
		result.Today = today
		result.RollupUpdated = true
	}

	if updated, err := h.stats.RecordSubmission(ctx, sub); err != nil {
		log.Error("failed to update user stats", logger.Err(err))
	} else {
		result.Stats = updated
		result.StatsUpdated = updated != nil
	}

	h.invalidate(ctx, log, userID)

	result.Duration = time.Since(start)
	log.Info("submission recorded",
		logger.Category(sub.Category.String()),
		logger.Bool("stats_updated", result.StatsUpdated),
		logger.Bool("rollup_updated", result.RollupUpdated),
		logger.Latency(result.Duration),
	)
	return result, nil
}

func (h *RecordSubmissionHandler) invalidate(ctx context.Context, log *logger.Logger, userID shared.UserID) {
	if h.cache == nil {
		return
	}
	key := cachekey.DashboardStats(userID)
	if err := h.cache.Delete(ctx, key); err != nil {
		log.Warn("failed to invalidate dashboard cache", logger.CacheKey(key), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION EVENT COMMAND
// Login/logout are logged on the day record without touching counters.
// ══════════════════════════════════════════════════════════════════════════════

// RecordSessionEventCommand contains the data to log a session event.
type RecordSessionEventCommand struct {
	UserID string
	Type   activity.EventType
}

// RecordSessionEventHandler handles RecordSessionEventCommand.
type RecordSessionEventHandler struct {
	rollup *ActivityRollup
}

// NewRecordSessionEventHandler creates the handler.
func NewRecordSessionEventHandler(rollup *ActivityRollup) *RecordSessionEventHandler {
	return &RecordSessionEventHandler{rollup: rollup}
}

// Handle executes the command.
func (h *RecordSessionEventHandler) Handle(ctx context.Context, cmd RecordSessionEventCommand) (*activity.DailyActivity, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	return h.rollup.RecordSession(ctx, userID, cmd.Type)
}
