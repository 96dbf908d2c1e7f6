package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prephub/prephub-analytics/internal/application/cachekey"
	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/internal/domain/user"
	"github.com/prephub/prephub-analytics/internal/infrastructure/cache"
	"github.com/prephub/prephub-analytics/internal/infrastructure/persistence/memory"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

var now = time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)

// countingLeaderboard counts engine calls and returns canned results.
type countingLeaderboard struct {
	calls atomic.Int32
	err   error
}

func (c *countingLeaderboard) Query(_ context.Context, f leaderboard.Filters, opts leaderboard.QueryOptions) (*leaderboard.Page, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &leaderboard.Page{
		Rows:      []leaderboard.Row{{Rank: 1, UserID: "u1", DisplayName: "One", TotalScore: 10}},
		Filters:   f,
		SortBy:    opts.SortBy,
		SortOrder: opts.SortOrder,
	}, nil
}

func (c *countingLeaderboard) UserPosition(_ context.Context, userID shared.UserID, _ leaderboard.Filters) (*leaderboard.Position, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &leaderboard.Position{Rank: 4, Totals: leaderboard.Row{Rank: 4, UserID: userID}}, nil
}

func (c *countingLeaderboard) TopPerformers(_ context.Context, _ leaderboard.Filters, limit int) ([]leaderboard.Row, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	rows := make([]leaderboard.Row, limit)
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

func (c *countingLeaderboard) FilterOptions(context.Context) (*leaderboard.FilterOptions, error) {
	c.calls.Add(1)
	return &leaderboard.FilterOptions{Exams: []string{"JEE"}, Subjects: []string{}, Chapters: []string{}}, nil
}

// flakyLeaderboard fails with an unavailable store a fixed number of times.
type flakyLeaderboard struct {
	countingLeaderboard
	failures atomic.Int32
}

func (f *flakyLeaderboard) TopPerformers(ctx context.Context, filters leaderboard.Filters, limit int) ([]leaderboard.Row, error) {
	if f.failures.Add(-1) >= 0 {
		f.calls.Add(1)
		return nil, shared.ErrLeaderboardUnavailable
	}
	return f.countingLeaderboard.TopPerformers(ctx, filters, limit)
}

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("cache offline")
}

func (brokenCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("cache offline")
}

func (brokenCache) Delete(context.Context, ...string) error { return errors.New("cache offline") }

func TestGetLeaderboard_CachesByTuple(t *testing.T) {
	ctx := context.Background()
	engine := &countingLeaderboard{}
	local := cache.NewLocal(timeutil.NewManualClock(now))
	h := NewGetLeaderboardHandler(engine, local, DefaultCacheTTLs(), nil)

	q := GetLeaderboardQuery{FilterParams: FilterParams{Exam: "JEE"}, SortBy: "score"}

	first, err := h.Handle(ctx, q)
	require.NoError(t, err)
	second, err := h.Handle(ctx, q)
	require.NoError(t, err)

	assert.EqualValues(t, 1, engine.calls.Load())
	assert.Equal(t, first.Rows, second.Rows)

	q.Page = 2
	_, err = h.Handle(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 2, engine.calls.Load(), "another page is another key")
}

func TestGetLeaderboard_Validation(t *testing.T) {
	engine := &countingLeaderboard{}
	h := NewGetLeaderboardHandler(engine, nil, DefaultCacheTTLs(), nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{SortBy: "luck"})
	assert.ErrorIs(t, err, shared.ErrInvalidSortKey)

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{FilterParams: FilterParams{Timeframe: "decade"}})
	assert.ErrorIs(t, err, shared.ErrInvalidTimeframe)
	assert.Zero(t, engine.calls.Load())
}

func TestGetLeaderboardQuery_Validate(t *testing.T) {
	f, opts, err := GetLeaderboardQuery{
		FilterParams: FilterParams{Subject: " Physics ", Timeframe: "today"},
		SortBy:       "time",
		SortOrder:    "asc",
		Page:         0,
		PageSize:     500,
	}.Validate()
	require.NoError(t, err)

	assert.Equal(t, "Physics", f.Subject)
	assert.Equal(t, leaderboard.TimeframeToday, f.Timeframe)
	assert.Equal(t, leaderboard.SortByTime, opts.SortBy)
	assert.Equal(t, leaderboard.OrderAsc, opts.SortOrder)
	assert.Equal(t, 1, opts.Page)
	assert.Equal(t, shared.MaxPageSize, opts.PageSize)
}

func TestGetOrCompute_BrokenCacheStillComputes(t *testing.T) {
	engine := &countingLeaderboard{}
	h := NewGetTopPerformersHandler(engine, brokenCache{}, DefaultCacheTTLs(), nil)

	res, err := h.Handle(context.Background(), GetTopPerformersQuery{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, leaderboard.DefaultTopPerformers)

	_, err = h.Handle(context.Background(), GetTopPerformersQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, engine.calls.Load())
}

func TestGetOrCompute_RetriesUnavailableStore(t *testing.T) {
	engine := &flakyLeaderboard{}
	engine.failures.Store(2)
	local := cache.NewLocal(timeutil.NewManualClock(now))
	h := NewGetTopPerformersHandler(engine, local, DefaultCacheTTLs(), nil)

	res, err := h.Handle(context.Background(), GetTopPerformersQuery{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	assert.EqualValues(t, 3, engine.calls.Load())
	assert.Equal(t, 1, local.Len())

	engine.failures.Store(5)
	_, err = NewGetTopPerformersHandler(engine, nil, DefaultCacheTTLs(), nil).Handle(context.Background(), GetTopPerformersQuery{Limit: 3})
	assert.ErrorIs(t, err, shared.ErrLeaderboardUnavailable)
	assert.EqualValues(t, 6, engine.calls.Load(), "three attempts, then the error surfaces")
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	engine := &countingLeaderboard{err: shared.ErrLeaderboardNoData}
	local := cache.NewLocal(timeutil.NewManualClock(now))
	h := NewGetUserPositionHandler(engine, local, DefaultCacheTTLs(), nil)

	_, err := h.Handle(ctx, GetUserPositionQuery{UserID: "u1"})
	assert.ErrorIs(t, err, shared.ErrLeaderboardNoData)
	assert.Zero(t, local.Len())

	engine.err = nil
	pos, err := h.Handle(ctx, GetUserPositionQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 4, pos.Rank)
	assert.Equal(t, 1, local.Len())

	_, err = h.Handle(ctx, GetUserPositionQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, engine.calls.Load(), "third call is a hit")
}

func TestGetOrCompute_ZeroTTLDisablesCaching(t *testing.T) {
	engine := &countingLeaderboard{}
	local := cache.NewLocal(timeutil.NewManualClock(now))
	h := NewGetFilterOptionsHandler(engine, local, CacheTTLs{}, nil)

	for i := 0; i < 2; i++ {
		opts, err := h.Handle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"JEE"}, opts.Exams)
	}
	assert.EqualValues(t, 2, engine.calls.Load())
	assert.Zero(t, local.Len())
}

func TestGetUserPosition_InvalidUser(t *testing.T) {
	h := NewGetUserPositionHandler(&countingLeaderboard{}, nil, DefaultCacheTTLs(), nil)
	_, err := h.Handle(context.Background(), GetUserPositionQuery{UserID: " "})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

// ══════════════════════════════════════════════════════════════════════════════
// Dashboard
// ══════════════════════════════════════════════════════════════════════════════

type dashboardFixture struct {
	repos   memory.Repositories
	local   *cache.Local
	clock   *timeutil.ManualClock
	handler *GetDashboardStatsHandler
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	repos := memory.NewRepositories(memory.NewStore())
	clock := timeutil.NewManualClock(now)
	cal := timeutil.NewCalendar(time.UTC, clock)
	local := cache.NewLocal(clock)

	u, err := user.New("u1", "Asel", "", now)
	require.NoError(t, err)
	require.NoError(t, repos.Users.Save(context.Background(), u))

	return &dashboardFixture{
		repos: repos,
		local: local,
		clock: clock,
		handler: NewGetDashboardStatsHandler(
			repos.Users, repos.Stats, repos.Activity, repos.Submissions,
			activity.DefaultGoalThresholds(), local, DefaultCacheTTLs(), cal, nil,
		),
	}
}

func (f *dashboardFixture) day(t *testing.T, date time.Time, mockTests int) {
	t.Helper()
	d := activity.New("u1", date, activity.DefaultGoalThresholds())
	for i := 0; i < mockTests; i++ {
		acc := 70.0
		require.NoError(t, d.AddActivity(activity.EventMockTestCompleted, date.Add(time.Hour), activity.EventDetails{Accuracy: &acc, TimeTakenSeconds: 1800}))
	}
	require.NoError(t, f.repos.Activity.Save(context.Background(), d))
}

func TestDashboard_ZeroFilledWindow(t *testing.T) {
	ctx := context.Background()
	f := newDashboardFixture(t)

	today := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	f.day(t, today, 2)
	f.day(t, today.AddDate(0, 0, -3), 1)
	f.day(t, today.AddDate(0, 0, -7), 5) // outside the window

	sub, err := submission.New("u1", submission.Payload{Category: "mocktest", TotalQuestions: 4, CorrectAnswers: 3, IncorrectAnswers: 1}, now)
	require.NoError(t, err)
	require.NoError(t, f.repos.Submissions.Create(ctx, sub))

	s := stats.New("u1")
	s.TotalTestsAttempted = 3
	s.UpdateStreak(now, timeutil.NewCalendar(time.UTC, nil))
	require.NoError(t, f.repos.Stats.Save(ctx, s))

	out, err := f.handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, out.Days, DashboardWindowDays)
	assert.Equal(t, "2024-06-04", out.Days[0].Date)
	assert.Equal(t, "2024-06-10", out.Days[6].Date)
	assert.Equal(t, 1, out.Days[3].MockTestsAttempted)
	assert.Zero(t, out.Days[1].MockTestsAttempted)
	assert.False(t, out.Days[1].IsActiveDay)

	assert.Equal(t, "Asel", out.DisplayName)
	assert.Equal(t, 2, out.Today.MockTestsAttempted)
	assert.Equal(t, 60, out.Today.TotalTimeSpent)
	assert.Equal(t, GoalProgressDTO{
		MockTests: 2, MockTestsTarget: 2,
		DSAProblems: 0, DSAProblemsTarget: 5,
		StudyMinutes: 60, StudyMinutesTarget: 60,
	}, out.Goals)

	assert.Equal(t, 3, out.Weekly.TestsAttempted)
	assert.Equal(t, 90, out.Weekly.MinutesSpent)
	assert.Equal(t, 2, out.Weekly.ActiveDays)
	assert.Equal(t, 1, out.Weekly.Submissions)
	assert.InDelta(t, 75.0, out.Weekly.AverageAccuracy, 1e-9)

	assert.Equal(t, 3, out.Lifetime.TotalTestsAttempted)
	assert.Equal(t, 1, out.Lifetime.CurrentStreak)
	assert.True(t, out.Lifetime.StreakAlive)
}

func TestDashboard_MissingStatsAreZero(t *testing.T) {
	f := newDashboardFixture(t)

	out, err := f.handler.Handle(context.Background(), GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, out.Lifetime.TotalTestsAttempted)
	assert.False(t, out.Lifetime.StreakAlive)
	assert.Len(t, out.Days, DashboardWindowDays)
}

func TestDashboard_UnknownUser(t *testing.T) {
	f := newDashboardFixture(t)

	_, err := f.handler.Handle(context.Background(), GetDashboardStatsQuery{UserID: "stranger"})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.Zero(t, f.local.Len())
}

func TestDashboard_CachedUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newDashboardFixture(t)

	first, err := f.handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, first.Today.MockTestsAttempted)

	f.day(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), 1)

	cached, err := f.handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, cached.Today.MockTestsAttempted, "served from cache")

	require.NoError(t, f.local.Delete(ctx, cachekey.DashboardStats("u1")))
	fresh, err := f.handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.Today.MockTestsAttempted)
}

// landingStats returns the row it read, then lets a concurrent submission
// finish its write and invalidation before the caller is done computing.
type landingStats struct {
	stats.Repository
	once sync.Once
	land func()
}

func (r *landingStats) Get(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	s, err := r.Repository.Get(ctx, userID)
	r.once.Do(r.land)
	return s, err
}

func TestDashboard_LateWriteDoesNotSurviveInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newDashboardFixture(t)
	cal := timeutil.NewCalendar(time.UTC, f.clock)

	repo := &landingStats{Repository: f.repos.Stats}
	repo.land = func() {
		s := stats.New("u1")
		s.TotalTestsAttempted = 1
		require.NoError(t, f.repos.Stats.Save(ctx, s))
		require.NoError(t, f.local.Delete(ctx, cachekey.DashboardStats("u1")))
	}
	handler := NewGetDashboardStatsHandler(
		f.repos.Users, repo, f.repos.Activity, f.repos.Submissions,
		activity.DefaultGoalThresholds(), f.local, DefaultCacheTTLs(), cal, nil,
	)

	before, err := handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, before.Lifetime.TotalTestsAttempted)
	assert.Equal(t, 1, f.local.Len(), "the pre-write view landed after the delete")

	f.clock.Advance(time.Minute)
	after, err := handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, after.Lifetime.TotalTestsAttempted)
	assert.EqualValues(t, 1, after.StatsVersion)
}

func TestDashboard_LostInvalidationIsRecomputed(t *testing.T) {
	ctx := context.Background()
	f := newDashboardFixture(t)

	first, err := f.handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Zero(t, first.StatsVersion)

	// Stats move on without the cache entry being deleted.
	s := stats.New("u1")
	s.TotalTestsAttempted = 2
	require.NoError(t, f.repos.Stats.Save(ctx, s))

	second, err := f.handler.Handle(ctx, GetDashboardStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Lifetime.TotalTestsAttempted)

	var cached DashboardStats
	hit, err := f.local.Get(ctx, cachekey.DashboardStats("u1"), &cached)
	require.NoError(t, err)
	require.True(t, hit)
	assert.EqualValues(t, 1, cached.StatsVersion, "the recomputed view replaced the stale one")
}
