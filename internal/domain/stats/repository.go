package stats

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// Repository persists UserStats with optimistic concurrency.
type Repository interface {
	// Get returns shared.ErrStatsNotFound when the user has no stats yet.
	Get(ctx context.Context, userID shared.UserID) (*UserStats, error)

	// Save writes s if the stored version still equals s.Version (zero means insert),
	// then increments s.Version. A lost race returns shared.ErrStatsConflict.
	Save(ctx context.Context, s *UserStats) error
}
