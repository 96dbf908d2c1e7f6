package activity

import (
	"context"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// Repository persists day rollups keyed by (user, date).
type Repository interface {
	// Get returns shared.ErrDailyActivityNotFound when the day has no record.
	Get(ctx context.Context, userID shared.UserID, date time.Time) (*DailyActivity, error)

	// Save upserts by (user, date) if the stored version still equals d.Version
	// (zero means insert), then increments d.Version.
	// A lost race returns shared.ErrDailyActivityConflict.
	Save(ctx context.Context, d *DailyActivity) error

	// Range returns records with from <= Date < to, oldest first.
	Range(ctx context.Context, userID shared.UserID, from, to time.Time) ([]*DailyActivity, error)
}
