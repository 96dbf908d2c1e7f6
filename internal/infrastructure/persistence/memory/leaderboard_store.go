package memory

import (
	"context"
	"sort"

	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// LeaderboardStore implements leaderboard.Store by folding the submission log.
type LeaderboardStore struct {
	store *Store
}

// NewLeaderboardStore creates the store.
func NewLeaderboardStore(store *Store) *LeaderboardStore {
	return &LeaderboardStore{store: store}
}

// Aggregate groups ranked submissions by user.
func (r *LeaderboardStore) Aggregate(ctx context.Context, c leaderboard.Criteria) ([]leaderboard.Totals, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return nil, err
	}
	return leaderboard.Accumulate(r.store.submissions, c), nil
}

// AggregateUser folds one user's ranked submissions.
func (r *LeaderboardStore) AggregateUser(ctx context.Context, userID shared.UserID, c leaderboard.Criteria) (leaderboard.Totals, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return leaderboard.Totals{}, err
	}

	filter := c.SubmissionFilter()
	filter.UserID = userID
	totals := leaderboard.Totals{UserID: userID}
	for _, s := range r.store.submissions {
		if filter.Matches(s) {
			totals.Add(s)
		}
	}
	return totals, nil
}

// CountScoreAbove counts other users with a strictly greater total score.
func (r *LeaderboardStore) CountScoreAbove(ctx context.Context, c leaderboard.Criteria, score float64, exclude shared.UserID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return 0, err
	}

	filter := c.SubmissionFilter()
	sums := make(map[shared.UserID]float64)
	for _, s := range r.store.submissions {
		if s.UserID != exclude && filter.Matches(s) {
			sums[s.UserID] += s.Score
		}
	}
	n := 0
	for _, total := range sums {
		if total > score {
			n++
		}
	}
	return n, nil
}

// DistinctFilterOptions lists classification values of ranked submissions.
func (r *LeaderboardStore) DistinctFilterOptions(ctx context.Context) (leaderboard.FilterOptions, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkFault(); err != nil {
		return leaderboard.FilterOptions{}, err
	}

	exams, subjects, chapters := map[string]struct{}{}, map[string]struct{}{}, map[string]struct{}{}
	for _, s := range r.store.submissions {
		if s.Category != submission.CategoryExam {
			continue
		}
		addNonEmpty(exams, s.Exam)
		addNonEmpty(subjects, s.Subject)
		addNonEmpty(chapters, s.Chapter)
	}
	return leaderboard.FilterOptions{
		Exams:    sortedKeys(exams),
		Subjects: sortedKeys(subjects),
		Chapters: sortedKeys(chapters),
	}, nil
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
