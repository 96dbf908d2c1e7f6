// Package cachekey builds read-cache keys.
// Per-user keys are namespaced by user ID and data type; leaderboard keys
// encode the whole filter+sort+page tuple so distinct views never collide.
package cachekey

import (
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// Data types of per-user keys.
const (
	TypeDashboardStats = "dashboard_stats"
	TypePosition       = "position"
)

const (
	prefixUser        = "user:"
	prefixLeaderboard = "leaderboard:"
)

// User returns user:{id}:{dataType}.
func User(userID shared.UserID, dataType string) string {
	return prefixUser + userID.String() + ":" + dataType
}

// DashboardStats returns the dashboard key of a user.
func DashboardStats(userID shared.UserID) string {
	return User(userID, TypeDashboardStats)
}

// UserPosition returns the standing key of a user under filters.
func UserPosition(userID shared.UserID, f leaderboard.Filters) string {
	return User(userID, TypePosition) + ":" + digest(filterParts(f)...)
}

// LeaderboardPage returns the key of one leaderboard page.
func LeaderboardPage(f leaderboard.Filters, opts leaderboard.QueryOptions) string {
	p := opts.Pagination()
	parts := append(filterParts(f),
		string(opts.SortBy),
		string(opts.SortOrder),
		strconv.Itoa(p.Page),
		strconv.Itoa(p.Limit()),
	)
	return prefixLeaderboard + "page:" + digest(parts...)
}

// TopPerformers returns the key of the top-N view.
func TopPerformers(f leaderboard.Filters, limit int) string {
	parts := append(filterParts(f), strconv.Itoa(limit))
	return prefixLeaderboard + "top:" + digest(parts...)
}

// FilterOptions returns the key of the distinct filter values.
func FilterOptions() string {
	return prefixLeaderboard + "filter_options"
}

func filterParts(f leaderboard.Filters) []string {
	f = f.Normalize()
	return []string{f.Exam, f.Subject, f.Chapter, string(f.Timeframe)}
}

// digest length-prefixes every part before hashing, so ("a:b","c") and
// ("a","b:c") produce different keys.
func digest(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
		b.WriteByte(';')
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
