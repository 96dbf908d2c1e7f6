package memory

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
)

// StatsRepository implements stats.Repository with version compare-and-swap.
type StatsRepository struct {
	store *Store
}

// NewStatsRepository creates the repository.
func NewStatsRepository(store *Store) *StatsRepository {
	return &StatsRepository{store: store}
}

// Get returns a copy of the stored stats.
func (r *StatsRepository) Get(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}
	s, ok := r.store.stats[userID]
	if !ok {
		return nil, shared.ErrStatsNotFound
	}
	return s.Clone(), nil
}

// Save stores s if its version matches the stored one.
func (r *StatsRepository) Save(ctx context.Context, s *stats.UserStats) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.checkFault(); err != nil {
		return err
	}

	current, ok := r.store.stats[s.UserID]
	switch {
	case !ok && s.Version != 0:
		return shared.ErrStatsConflict
	case ok && current.Version != s.Version:
		return shared.ErrStatsConflict
	}

	s.Version++
	r.store.stats[s.UserID] = s.Clone()
	return nil
}
