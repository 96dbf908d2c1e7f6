package submission

import (
	"context"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// Filter selects submissions. Zero-valued fields do not constrain.
type Filter struct {
	UserID   shared.UserID
	Category Category
	Exam     string
	Subject  string
	Chapter  string
	// Since is inclusive, Until is exclusive.
	Since time.Time
	Until time.Time

	// Newest first when true.
	NewestFirst bool
	Offset      int
	Limit       int
}

// Matches reports whether s satisfies the filter predicates (ordering and paging ignored).
func (f Filter) Matches(s *Submission) bool {
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.Exam != "" && s.Exam != f.Exam {
		return false
	}
	if f.Subject != "" && s.Subject != f.Subject {
		return false
	}
	if f.Chapter != "" && s.Chapter != f.Chapter {
		return false
	}
	if !f.Since.IsZero() && s.SubmittedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !s.SubmittedAt.Before(f.Until) {
		return false
	}
	return true
}

// Repository is the append-only submission log.
type Repository interface {
	// Create persists a new submission. Submissions are never updated.
	Create(ctx context.Context, s *Submission) error

	// Find returns submissions matching the filter.
	Find(ctx context.Context, f Filter) ([]*Submission, error)

	// Count returns the number of submissions matching the filter.
	Count(ctx context.Context, f Filter) (int, error)
}
