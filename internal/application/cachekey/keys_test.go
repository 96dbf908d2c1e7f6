package cachekey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
)

func TestUserKeys(t *testing.T) {
	assert.Equal(t, "user:u1:dashboard_stats", DashboardStats("u1"))
	assert.Equal(t, "user:u1:custom", User("u1", "custom"))
	assert.True(t, strings.HasPrefix(UserPosition("u1", leaderboard.Filters{}), "user:u1:position:"))
	assert.Equal(t, "leaderboard:filter_options", FilterOptions())
}

func TestLeaderboardKeys_Distinct(t *testing.T) {
	base := leaderboard.DefaultQueryOptions()
	f := leaderboard.Filters{Exam: "JEE", Timeframe: leaderboard.TimeframeWeek}

	keys := []string{
		LeaderboardPage(f, base),
		LeaderboardPage(f, base.WithPage(2)),
		LeaderboardPage(f, base.WithPageSize(50)),
		LeaderboardPage(leaderboard.Filters{Exam: "NEET", Timeframe: leaderboard.TimeframeWeek}, base),
		LeaderboardPage(leaderboard.Filters{Exam: "JEE", Timeframe: leaderboard.TimeframeMonth}, base),
		LeaderboardPage(leaderboard.Filters{Exam: "JEE:week"}, base),
		TopPerformers(f, 3),
		TopPerformers(f, 5),
	}

	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestLeaderboardKeys_NormalizedFilters(t *testing.T) {
	opts := leaderboard.DefaultQueryOptions()

	assert.Equal(t,
		LeaderboardPage(leaderboard.Filters{Exam: "JEE"}, opts),
		LeaderboardPage(leaderboard.Filters{Exam: " JEE ", Timeframe: leaderboard.TimeframeAll}, opts),
	)
	assert.Equal(t,
		UserPosition("u1", leaderboard.Filters{}),
		UserPosition("u1", leaderboard.Filters{Timeframe: leaderboard.TimeframeAll}),
	)
	assert.NotEqual(t,
		UserPosition("u1", leaderboard.Filters{}),
		UserPosition("u2", leaderboard.Filters{}),
	)
}

func TestDigest_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, digest("a:b", "c"), digest("a", "b:c"))
	assert.Len(t, digest("x"), 32)
}
