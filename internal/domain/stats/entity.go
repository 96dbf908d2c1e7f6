// Package stats holds the lifetime per-user statistics record.
// Updates are incremental: each submission folds into the previous totals
// without rescanning history.
package stats

import (
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// UserStats is the lifetime aggregate for one user.
type UserStats struct {
	UserID shared.UserID

	TotalTestsAttempted int
	TotalDSAAttempted   int
	TotalDSASolved      int

	// Minutes.
	TotalTimeSpentMockTests int
	TotalTimeSpentDSA       int

	// OverallAccuracy is the running mean of submission accuracy across both categories.
	OverallAccuracy float64

	CurrentStreak int
	LongestStreak int
	// LastActivityDate is a local midnight; zero when the user never had activity.
	LastActivityDate time.Time

	// Version is the optimistic-concurrency token. Zero means not yet persisted.
	Version   int64
	UpdatedAt time.Time
}

// New creates zeroed stats for a user.
func New(userID shared.UserID) *UserStats {
	return &UserStats{UserID: userID}
}

// TotalAttempts returns attempts across both categories.
func (s *UserStats) TotalAttempts() int {
	return s.TotalTestsAttempted + s.TotalDSAAttempted
}

// TotalTimeSpent returns minutes across both categories.
func (s *UserStats) TotalTimeSpent() int {
	return s.TotalTimeSpentMockTests + s.TotalTimeSpentDSA
}

// RecordSubmission folds one submission into the counters and running accuracy.
func (s *UserStats) RecordSubmission(sub *submission.Submission) {
	prior := s.TotalAttempts()
	minutes := sub.TimeTakenMinutes()

	switch sub.Category {
	case submission.CategoryExam:
		s.TotalTestsAttempted++
		s.TotalTimeSpentMockTests += minutes
	case submission.CategoryDSA:
		s.TotalDSAAttempted++
		s.TotalTimeSpentDSA += minutes
		if sub.IsSolved() {
			s.TotalDSASolved++
		}
	default:
		return
	}

	if prior == 0 {
		s.OverallAccuracy = sub.Accuracy
		return
	}
	n := float64(prior + 1)
	s.OverallAccuracy = (s.OverallAccuracy*(n-1) + sub.Accuracy) / n
}

// UpdateStreak advances the day streak as of the given instant.
// Same-day calls are idempotent; a missed day resets the streak to 1.
func (s *UserStats) UpdateStreak(asOf time.Time, cal timeutil.Calendar) {
	today := cal.StartOfDay(asOf)

	if s.LastActivityDate.IsZero() {
		s.CurrentStreak = 1
	} else {
		switch gap := cal.DaysBetween(s.LastActivityDate, today); {
		case gap == 0:
			// same day
		case gap == 1:
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	}

	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = today
}

// IsStreakAlive reports whether the streak still counts as of now
// (last activity today or yesterday).
func (s *UserStats) IsStreakAlive(now time.Time, cal timeutil.Calendar) bool {
	if s.LastActivityDate.IsZero() {
		return false
	}
	return cal.DaysBetween(s.LastActivityDate, now) <= 1
}

// Clone returns a copy safe to mutate.
func (s *UserStats) Clone() *UserStats {
	c := *s
	return &c
}
