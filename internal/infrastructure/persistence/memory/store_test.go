package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestStatsRepository_VersionCAS(t *testing.T) {
	ctx := context.Background()
	repo := NewStatsRepository(NewStore())

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrStatsNotFound)

	s := stats.New("u1")
	require.NoError(t, repo.Save(ctx, s))
	assert.EqualValues(t, 1, s.Version)

	a, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "u1")
	require.NoError(t, err)

	a.TotalTestsAttempted = 1
	require.NoError(t, repo.Save(ctx, a))

	b.TotalTestsAttempted = 99
	err = repo.Save(ctx, b)
	assert.ErrorIs(t, err, shared.ErrStatsConflict)
	assert.True(t, shared.IsConflict(err))

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalTestsAttempted)
	assert.EqualValues(t, 2, stored.Version)

	// A second insert of the same user loses the race too.
	assert.ErrorIs(t, repo.Save(ctx, stats.New("u1")), shared.ErrStatsConflict)
}

func TestStatsRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStatsRepository(NewStore())
	s := stats.New("u1")
	require.NoError(t, repo.Save(ctx, s))

	s.TotalDSASolved = 42
	got, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, got.TotalDSASolved)
}

func TestActivityRepository_SaveAndRange(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository(NewStore())
	goals := activity.DefaultGoalThresholds()

	for _, offset := range []int{3, 0, 1, 5} {
		require.NoError(t, repo.Save(ctx, activity.New("u1", day.AddDate(0, 0, offset), goals)))
	}
	require.NoError(t, repo.Save(ctx, activity.New("u2", day, goals)))

	got, err := repo.Range(ctx, "u1", day, day.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, day, got[0].Date)
	assert.Equal(t, day.AddDate(0, 0, 1), got[1].Date)
	assert.Equal(t, day.AddDate(0, 0, 3), got[2].Date)

	stale := activity.New("u1", day, goals)
	assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrDailyActivityConflict)

	_, err = repo.Get(ctx, "u1", day.AddDate(0, 0, 2))
	assert.ErrorIs(t, err, shared.ErrDailyActivityNotFound)

	current, err := repo.Get(ctx, "u1", day)
	require.NoError(t, err)
	require.NoError(t, current.AddActivity(activity.EventLogin, day, activity.EventDetails{}))
	require.NoError(t, repo.Save(ctx, current))
	assert.EqualValues(t, 2, current.Version)
}

func TestSubmissionRepository_FindAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(NewStore())

	var ids []string
	for i := 0; i < 4; i++ {
		s, err := submission.New("u1", submission.Payload{
			Category:       "mocktest",
			TotalQuestions: 1, CorrectAnswers: 1,
			SubmittedAt: day.Add(time.Duration(i) * time.Hour),
		}, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
		ids = append(ids, s.ID.String())

		if i == 0 {
			err := repo.Create(ctx, s)
			assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		}
	}

	newest, err := repo.Find(ctx, submission.Filter{UserID: "u1", NewestFirst: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, ids[3], newest[0].ID.String())
	assert.Equal(t, ids[2], newest[1].ID.String())

	page, err := repo.Find(ctx, submission.Filter{Offset: 3})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[3], page[0].ID.String())

	empty, err := repo.Find(ctx, submission.Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	n, err := repo.Count(ctx, submission.Filter{Since: day.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_FailWith(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repos := NewRepositories(store)

	store.FailWith(errors.New("network partition"))
	_, err := repos.Users.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.False(t, shared.IsNotFound(err))

	_, err = repos.Leaderboard.DistinctFilterOptions(ctx)
	assert.True(t, shared.IsRetryable(err))

	store.FailWith(nil)
	_, err = repos.Users.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}
