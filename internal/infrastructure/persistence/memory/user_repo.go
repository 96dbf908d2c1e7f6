package memory

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/user"
)

// UserRepository implements user.Repository.
type UserRepository struct {
	store *Store
}

// NewUserRepository creates the repository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// FindByID returns a copy of the profile.
func (r *UserRepository) FindByID(ctx context.Context, id shared.UserID) (*user.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}
	u, ok := r.store.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// FindByIDs returns copies of the existing profiles.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*user.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}
	out := make(map[shared.UserID]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := r.store.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

// Save creates or replaces a profile.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.checkFault(); err != nil {
		return err
	}
	c := *u
	r.store.users[u.ID] = &c
	return nil
}
