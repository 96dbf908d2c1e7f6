package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages runtime toggles of optional behavior.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	FeatureLeaderboardBadges        = "leaderboard.badges"           // badges on top performers
	FeatureCacheRedis               = "cache.redis"                  // Redis read cache instead of in-process
	FeatureSchedulerLeaderboardWarm = "scheduler.leaderboard_warmup" // periodic leaderboard warm-up
	FeatureSchedulerCacheSweep      = "scheduler.cache_sweep"        // periodic expired entry sweep
)

// LoadFeatureFlags loads defaults and applies FEATURE_* environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	ff.loadFromEnvironment()
	return ff
}

// NewFeatureFlags returns the defaults without reading the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	for _, f := range []Feature{
		{Name: FeatureLeaderboardBadges, Description: "Award badges to top performers", Enabled: true},
		{Name: FeatureCacheRedis, Description: "Use Redis as the read cache backend", Enabled: false},
		{Name: FeatureSchedulerLeaderboardWarm, Description: "Warm leaderboard cache in the background", Enabled: true},
		{Name: FeatureSchedulerCacheSweep, Description: "Sweep expired in-process cache entries", Enabled: true},
	} {
		ff.features[f.Name] = &f
	}
	return ff
}

// loadFromEnvironment loads overrides from env vars.
// Example: FEATURE_CACHE_REDIS=true
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "cache.redis" -> "FEATURE_CACHE_REDIS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a known feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// SetEnabled toggles a feature at runtime.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// All returns a copy of all features sorted by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// --- Errors ---

// ErrFeatureNotFound is returned for unknown feature names.
var ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
