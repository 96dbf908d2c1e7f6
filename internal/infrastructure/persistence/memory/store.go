// Package memory is an in-process implementation of every analytics repository.
// Records live in one arena keyed by ID, so tests and single-node runs need no
// global state and no database. Reads and writes hand out copies.
package memory

import (
	"sync"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/internal/domain/user"
)

type dayKey struct {
	userID shared.UserID
	date   int64 // unix seconds of the stored local midnight
}

func newDayKey(userID shared.UserID, date time.Time) dayKey {
	return dayKey{userID: userID, date: date.Unix()}
}

// Store is the shared arena.
type Store struct {
	mu sync.RWMutex

	users       map[shared.UserID]*user.User
	submissions []*submission.Submission
	stats       map[shared.UserID]*stats.UserStats
	days        map[dayKey]*activity.DailyActivity

	// fault, when set, is returned by every operation.
	fault error
}

// NewStore creates an empty arena.
func NewStore() *Store {
	return &Store{
		users:       make(map[shared.UserID]*user.User),
		submissions: make([]*submission.Submission, 0),
		stats:       make(map[shared.UserID]*stats.UserStats),
		days:        make(map[dayKey]*activity.DailyActivity),
	}
}

// FailWith makes every subsequent operation return err. Nil restores normal operation.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.fault = err
	s.mu.Unlock()
}

// checkFault must be called with the lock held.
func (s *Store) checkFault() error {
	if s.fault != nil {
		return shared.WrapError("memory", "Access", shared.ErrServiceUnavailable, "store unavailable", s.fault)
	}
	return nil
}

// Repositories bundles every repository view over one store.
type Repositories struct {
	Users       *UserRepository
	Submissions *SubmissionRepository
	Stats       *StatsRepository
	Activity    *ActivityRepository
	Leaderboard *LeaderboardStore
}

// NewRepositories creates all repository views over s.
func NewRepositories(s *Store) Repositories {
	return Repositories{
		Users:       NewUserRepository(s),
		Submissions: NewSubmissionRepository(s),
		Stats:       NewStatsRepository(s),
		Activity:    NewActivityRepository(s),
		Leaderboard: NewLeaderboardStore(s),
	}
}
