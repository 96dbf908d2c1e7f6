// Package user holds the read-only learner profile this subsystem joins
// against for existence checks and display fields.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// User is the learner profile as seen by analytics.
type User struct {
	ID          shared.UserID
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}

// New creates a user profile.
func New(id shared.UserID, displayName, avatarURL string, createdAt time.Time) (*User, error) {
	if !id.IsValid() {
		return nil, shared.NewDomainError("user", "New", shared.ErrInvalidID, "invalid user ID")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = id.String()
	}
	return &User{
		ID:          id,
		DisplayName: name,
		AvatarURL:   strings.TrimSpace(avatarURL),
		CreatedAt:   createdAt,
	}, nil
}

// Repository is the profile lookup consumed by analytics.
// Profiles are owned by the account collaborator; Save exists for seeding.
type Repository interface {
	// FindByID returns shared.ErrUserNotFound when absent.
	FindByID(ctx context.Context, id shared.UserID) (*User, error)

	// FindByIDs returns the profiles that exist; missing IDs are omitted.
	FindByIDs(ctx context.Context, ids []shared.UserID) (map[shared.UserID]*User, error)

	// Save creates or replaces a profile.
	Save(ctx context.Context, u *User) error
}
