package memory

import (
	"context"
	"sort"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// SubmissionRepository implements submission.Repository.
type SubmissionRepository struct {
	store *Store
}

// NewSubmissionRepository creates the repository.
func NewSubmissionRepository(store *Store) *SubmissionRepository {
	return &SubmissionRepository{store: store}
}

// Create appends a submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *submission.Submission) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.store.checkFault(); err != nil {
		return err
	}
	for _, existing := range r.store.submissions {
		if existing.ID == s.ID {
			return shared.NewDomainError("submission", "Create", shared.ErrAlreadyExists, "submission already exists")
		}
	}
	c := *s
	r.store.submissions = append(r.store.submissions, &c)
	return nil
}

// Find returns matching submissions ordered by SubmittedAt.
func (r *SubmissionRepository) Find(ctx context.Context, f submission.Filter) ([]*submission.Submission, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}

	out := make([]*submission.Submission, 0)
	for _, s := range r.store.submissions {
		if f.Matches(s) {
			c := *s
			out = append(out, &c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if f.NewestFirst {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*submission.Submission{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Count returns the number of matching submissions.
func (r *SubmissionRepository) Count(ctx context.Context, f submission.Filter) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return 0, err
	}
	n := 0
	for _, s := range r.store.submissions {
		if f.Matches(s) {
			n++
		}
	}
	return n, nil
}
