package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("STORAGE_DRIVER", "memory")
}

func TestFromEnv_Defaults(t *testing.T) {
	memoryEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, time.UTC, cfg.App.Location)

	assert.Equal(t, 5*time.Minute, cfg.Cache.DashboardTTL)
	assert.Equal(t, 60*time.Second, cfg.Cache.LeaderboardTTL)
	assert.Equal(t, GoalsConfig{MockTests: 2, DSAProblems: 5, StudyMinutes: 60}, cfg.Goals)
	assert.Equal(t, 95.0, cfg.Leaderboard.AccuracyMasterMin)
	assert.Less(t, cfg.Scheduler.LeaderboardWarmupEvery, cfg.Cache.LeaderboardTTL)
	assert.True(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, "prephub:", cfg.Redis.KeyPrefix)
}

func TestFromEnv_Overrides(t *testing.T) {
	memoryEnv(t)
	t.Setenv("APP_TIMEZONE", "Asia/Almaty")
	t.Setenv("CACHE_LEADERBOARD_TTL", "2m")
	t.Setenv("GOAL_DSA_PROBLEMS", "8")
	t.Setenv("BADGE_HIGH_SCORER_MIN", "750.5")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("REDIS_PORT", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Almaty", cfg.App.Location.String())
	assert.Equal(t, 2*time.Minute, cfg.Cache.LeaderboardTTL)
	assert.Equal(t, 8, cfg.Goals.DSAProblems)
	assert.Equal(t, 750.5, cfg.Leaderboard.HighScorerMin)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 6379, cfg.Redis.Port, "unparsable values fall back to the default")
}

func TestFromEnv_Postgres(t *testing.T) {
	memoryEnv(t)
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "analytics")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:pw@db:5432/analytics?sslmode=disable", cfg.Database.URL)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER must be postgres or memory"},
		{"postgres without url", map[string]string{"STORAGE_DRIVER": "postgres", "DATABASE_URL": "", "DB_HOST": ""}, "DATABASE_URL"},
		{"memory in production", map[string]string{"APP_ENV": "production"}, "not allowed in production"},
		{"negative goal", map[string]string{"GOAL_MOCK_TESTS": "-1"}, "GOAL_*"},
		{"negative ttl", map[string]string{"CACHE_POSITION_TTL": "-1s"}, "CACHE_POSITION_TTL"},
		{"bad timezone", map[string]string{"APP_TIMEZONE": "Mars/Olympus"}, "APP_TIMEZONE"},
		{"zero interval", map[string]string{"SCHEDULER_CACHE_SWEEP_INTERVAL": "0s"}, "scheduler intervals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memoryEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFeatureFlags(t *testing.T) {
	ff := NewFeatureFlags()
	assert.True(t, ff.IsEnabled(FeatureLeaderboardBadges))
	assert.False(t, ff.IsEnabled(FeatureCacheRedis))
	assert.False(t, ff.IsEnabled("unknown.flag"))

	require.NoError(t, ff.SetEnabled(FeatureCacheRedis, true))
	assert.True(t, ff.IsEnabled(FeatureCacheRedis))
	assert.ErrorIs(t, ff.SetEnabled("unknown.flag", true), ErrFeatureNotFound)

	all := ff.All()
	require.Len(t, all, 4)
	assert.Equal(t, FeatureCacheRedis, all[0].Name)
}

func TestFeatureFlags_FromEnvironment(t *testing.T) {
	t.Setenv("FEATURE_CACHE_REDIS", "true")
	t.Setenv("FEATURE_LEADERBOARD_BADGES", "false")
	t.Setenv("FEATURE_SCHEDULER_CACHE_SWEEP", "maybe")

	ff := LoadFeatureFlags()
	assert.True(t, ff.IsEnabled(FeatureCacheRedis))
	assert.False(t, ff.IsEnabled(FeatureLeaderboardBadges))
	assert.True(t, ff.IsEnabled(FeatureSchedulerCacheSweep), "unparsable override is ignored")
	assert.Equal(t, "FEATURE_SCHEDULER_LEADERBOARD_WARMUP", featureNameToEnvKey(FeatureSchedulerLeaderboardWarm))
}
