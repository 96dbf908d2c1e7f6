package postgres

import (
	"context"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS REPOSITORY IMPLEMENTATION
// Writes are compare-and-swap on the version column.
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements stats.Repository for PostgreSQL.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// Get returns the user's lifetime stats.
func (r *StatsRepository) Get(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	var (
		s    = stats.UserStats{UserID: userID}
		last *time.Time
	)
	err := r.conn.QueryRow(ctx, `
		SELECT total_tests_attempted, total_dsa_attempted, total_dsa_solved,
			   total_time_spent_mock_tests, total_time_spent_dsa, overall_accuracy,
			   current_streak, longest_streak, last_activity_date, version, updated_at
		FROM user_stats
		WHERE user_id = $1
	`, userID.String()).Scan(
		&s.TotalTestsAttempted,
		&s.TotalDSAAttempted,
		&s.TotalDSASolved,
		&s.TotalTimeSpentMockTests,
		&s.TotalTimeSpentDSA,
		&s.OverallAccuracy,
		&s.CurrentStreak,
		&s.LongestStreak,
		&last,
		&s.Version,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStatsNotFound
		}
		return nil, storageError("get user stats", err)
	}
	if last != nil {
		s.LastActivityDate = *last
	}
	return &s, nil
}

// Save inserts (Version == 0) or updates the row if its version is unchanged.
func (r *StatsRepository) Save(ctx context.Context, s *stats.UserStats) error {
	var last *time.Time
	if !s.LastActivityDate.IsZero() {
		last = &s.LastActivityDate
	}

	var query string
	if s.Version == 0 {
		query = `
			INSERT INTO user_stats (
				user_id, total_tests_attempted, total_dsa_attempted, total_dsa_solved,
				total_time_spent_mock_tests, total_time_spent_dsa, overall_accuracy,
				current_streak, longest_streak, last_activity_date, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12 + 1)
			ON CONFLICT (user_id) DO NOTHING
		`
	} else {
		query = `
			UPDATE user_stats SET
				total_tests_attempted = $2,
				total_dsa_attempted = $3,
				total_dsa_solved = $4,
				total_time_spent_mock_tests = $5,
				total_time_spent_dsa = $6,
				overall_accuracy = $7,
				current_streak = $8,
				longest_streak = $9,
				last_activity_date = $10,
				updated_at = $11,
				version = version + 1
			WHERE user_id = $1 AND version = $12
		`
	}

	tag, err := r.conn.Exec(ctx, query,
		s.UserID.String(),
		s.TotalTestsAttempted,
		s.TotalDSAAttempted,
		s.TotalDSASolved,
		s.TotalTimeSpentMockTests,
		s.TotalTimeSpentDSA,
		s.OverallAccuracy,
		s.CurrentStreak,
		s.LongestStreak,
		last,
		s.UpdatedAt,
		s.Version,
	)
	if err != nil {
		return storageError("save user stats", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStatsConflict
	}

	s.Version++
	return nil
}
