package postgres

import (
	"context"
	"fmt"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/user"
)

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// FindByID returns a profile by ID.
func (r *UserRepository) FindByID(ctx context.Context, id shared.UserID) (*user.User, error) {
	var u user.User
	var userID string
	err := r.conn.QueryRow(ctx,
		`SELECT id, display_name, avatar_url, created_at FROM users WHERE id = $1`,
		id.String(),
	).Scan(&userID, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, storageError("get user", err)
	}
	u.ID = shared.UserID(userID)
	return &u, nil
}

// FindByIDs returns the existing profiles among ids.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*user.User, error) {
	out := make(map[shared.UserID]*user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	rows, err := r.conn.Query(ctx,
		`SELECT id, display_name, avatar_url, created_at FROM users WHERE id = ANY($1)`,
		raw,
	)
	if err != nil {
		return nil, storageError("query users", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u user.User
		var userID string
		if err := rows.Scan(&userID, &u.DisplayName, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.ID = shared.UserID(userID)
		out[u.ID] = &u
	}
	return out, rows.Err()
}

// Save upserts a profile.
func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO users (id, display_name, avatar_url, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url
	`, u.ID.String(), u.DisplayName, u.AvatarURL, u.CreatedAt)
	if err != nil {
		return storageError("save user", err)
	}
	return nil
}
