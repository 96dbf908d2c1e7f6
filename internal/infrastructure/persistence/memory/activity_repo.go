package memory

import (
	"context"
	"sort"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// ActivityRepository implements activity.Repository.
type ActivityRepository struct {
	store *Store
}

// NewActivityRepository creates the repository.
func NewActivityRepository(store *Store) *ActivityRepository {
	return &ActivityRepository{store: store}
}

// Get returns a copy of the day record.
func (r *ActivityRepository) Get(ctx context.Context, userID shared.UserID, date time.Time) (*activity.DailyActivity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}
	d, ok := r.store.days[newDayKey(userID, date)]
	if !ok {
		return nil, shared.ErrDailyActivityNotFound
	}
	return d.Clone(), nil
}

// Save upserts by (user, date) with version compare-and-swap.
func (r *ActivityRepository) Save(ctx context.Context, d *activity.DailyActivity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.checkFault(); err != nil {
		return err
	}

	key := newDayKey(d.UserID, d.Date)
	current, ok := r.store.days[key]
	switch {
	case !ok && d.Version != 0:
		return shared.ErrDailyActivityConflict
	case ok && current.Version != d.Version:
		return shared.ErrDailyActivityConflict
	}

	d.Version++
	r.store.days[key] = d.Clone()
	return nil
}

// Range returns records in [from, to), oldest first.
func (r *ActivityRepository) Range(ctx context.Context, userID shared.UserID, from, to time.Time) ([]*activity.DailyActivity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}

	out := make([]*activity.DailyActivity, 0)
	for key, d := range r.store.days {
		if key.userID != userID {
			continue
		}
		if d.Date.Before(from) || !d.Date.Before(to) {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
