package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prephub/prephub-analytics/internal/application/analytics"
	"github.com/prephub/prephub-analytics/internal/application/query"
	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/internal/domain/user"
	"github.com/prephub/prephub-analytics/internal/infrastructure/cache"
	"github.com/prephub/prephub-analytics/internal/infrastructure/persistence/memory"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

var now = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T, withCache bool) (*analytics.Service, *timeutil.ManualClock) {
	t.Helper()
	repos := memory.NewRepositories(memory.NewStore())
	clock := timeutil.NewManualClock(now)

	for _, id := range []string{"u1", "u2"} {
		u, err := user.New(shared.UserID(id), "Learner "+id, "", now)
		require.NoError(t, err)
		require.NoError(t, repos.Users.Save(context.Background(), u))
	}

	deps := analytics.Dependencies{
		Users:       repos.Users,
		Submissions: repos.Submissions,
		Stats:       repos.Stats,
		Days:        repos.Activity,
		Leaderboard: repos.Leaderboard,
		Calendar:    timeutil.NewCalendar(time.UTC, clock),
		Goals:       activity.DefaultGoalThresholds(),
		TTLs:        query.DefaultCacheTTLs(),
		Engine:      leaderboard.DefaultEngineConfig(),
	}
	if withCache {
		deps.Cache = cache.NewLocal(clock)
	}
	return analytics.NewService(deps), clock
}

func exam(score float64) submission.Payload {
	return submission.Payload{
		Category:         "exam-type",
		Exam:             "JEE",
		Subject:          "Maths",
		TotalQuestions:   20,
		CorrectAnswers:   15,
		IncorrectAnswers: 5,
		TimeTakenSeconds: 1500,
		Score:            score,
		MaxScore:         80,
	}
}

func TestService_SubmissionFlowsIntoEveryView(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, true)

	before, err := svc.GetDashboardStats(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, before.Lifetime.TotalTestsAttempted)

	_, err = svc.RecordSubmission(ctx, "u1", exam(60))
	require.NoError(t, err)
	_, err = svc.RecordSubmission(ctx, "u2", exam(72))
	require.NoError(t, err)

	dash, err := svc.GetDashboardStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Lifetime.TotalTestsAttempted, "dashboard entry was invalidated")
	assert.Equal(t, 1, dash.Today.MockTestsAttempted)
	assert.Equal(t, 25, dash.Today.TotalTimeSpent)

	page, err := svc.GetLeaderboard(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, shared.UserID("u2"), page.Rows[0].UserID)
	assert.Equal(t, "Learner u2", page.Rows[0].DisplayName)

	pos, err := svc.GetUserPosition(ctx, "u1", query.FilterParams{Timeframe: "today"})
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Rank)

	top, err := svc.GetTopPerformers(ctx, query.FilterParams{}, 1)
	require.NoError(t, err)
	require.Len(t, top.Rows, 1)
	assert.Equal(t, shared.UserID("u2"), top.Rows[0].UserID)
	assert.Empty(t, top.Rows[0].Badges, "no default threshold is reached")

	opts, err := svc.GetFilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maths"}, opts.Subjects)
}

func TestService_SessionEvents(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, false)

	require.NoError(t, svc.RecordLogin(ctx, "u1"))
	require.NoError(t, svc.RecordLogout(ctx, "u1"))

	dash, err := svc.GetDashboardStats(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, dash.Today.IsActiveDay)
	assert.Zero(t, dash.Weekly.ActiveDays)

	assert.Error(t, svc.RecordLogin(ctx, ""))
}

func TestService_PositionWithoutData(t *testing.T) {
	svc, _ := newService(t, true)

	_, err := svc.GetUserPosition(context.Background(), "u1", query.FilterParams{})
	assert.ErrorIs(t, err, shared.ErrLeaderboardNoData)
}

func TestService_LeaderboardIsCachedUntilTTL(t *testing.T) {
	ctx := context.Background()
	svc, clock := newService(t, true)

	_, err := svc.RecordSubmission(ctx, "u1", exam(40))
	require.NoError(t, err)

	first, err := svc.GetLeaderboard(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	require.Len(t, first.Rows, 1)

	_, err = svc.RecordSubmission(ctx, "u2", exam(50))
	require.NoError(t, err)

	stale, err := svc.GetLeaderboard(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Len(t, stale.Rows, 1)

	clock.Advance(query.DefaultCacheTTLs().Leaderboard)
	fresh, err := svc.GetLeaderboard(ctx, query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.Len(t, fresh.Rows, 2)
}
