package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACTIVITY REPOSITORY IMPLEMENTATION
// One row per (user_id, date). Goals and the event log are JSONB.
// ══════════════════════════════════════════════════════════════════════════════

const dailyActivityColumns = `user_id, date, mock_tests_attempted, dsa_problems_attempted, dsa_problems_solved,
	time_spent_mock_tests, time_spent_dsa, total_time_spent, mock_test_accuracy, dsa_accuracy,
	goals, is_active_day, events, version, created_at, updated_at`

// ActivityRepository implements activity.Repository for PostgreSQL.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// Get returns the record of one day.
func (r *ActivityRepository) Get(ctx context.Context, userID shared.UserID, date time.Time) (*activity.DailyActivity, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+dailyActivityColumns+` FROM daily_activity WHERE user_id = $1 AND date = $2`,
		userID.String(), date,
	)
	d, err := scanDailyActivity(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrDailyActivityNotFound
		}
		return nil, err
	}
	return d, nil
}

// Save upserts by (user_id, date) with compare-and-swap on version.
func (r *ActivityRepository) Save(ctx context.Context, d *activity.DailyActivity) error {
	goals, err := json.Marshal(d.Goals)
	if err != nil {
		return fmt.Errorf("failed to marshal goals: %w", err)
	}
	events, err := json.Marshal(d.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	args := []any{
		d.UserID.String(),
		d.Date,
		d.MockTestsAttempted,
		d.DSAProblemsAttempted,
		d.DSAProblemsSolved,
		d.TimeSpentMockTests,
		d.TimeSpentDSA,
		d.TotalTimeSpent,
		d.MockTestAccuracy,
		d.DSAAccuracy,
		goals,
		d.IsActiveDay,
		events,
		d.Version,
		d.UpdatedAt,
	}

	var query string
	if d.Version == 0 {
		query = `
			INSERT INTO daily_activity (` + dailyActivityColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14 + 1, $16, $15)
			ON CONFLICT (user_id, date) DO NOTHING
		`
		args = append(args, d.CreatedAt)
	} else {
		query = `
			UPDATE daily_activity SET
				mock_tests_attempted = $3,
				dsa_problems_attempted = $4,
				dsa_problems_solved = $5,
				time_spent_mock_tests = $6,
				time_spent_dsa = $7,
				total_time_spent = $8,
				mock_test_accuracy = $9,
				dsa_accuracy = $10,
				goals = $11,
				is_active_day = $12,
				events = $13,
				version = version + 1,
				updated_at = $15
			WHERE user_id = $1 AND date = $2 AND version = $14
		`
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return storageError("save daily activity", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrDailyActivityConflict
	}

	d.Version++
	return nil
}

// Range returns records with from <= date < to, oldest first.
func (r *ActivityRepository) Range(ctx context.Context, userID shared.UserID, from, to time.Time) ([]*activity.DailyActivity, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+dailyActivityColumns+` FROM daily_activity
		 WHERE user_id = $1 AND date >= $2 AND date < $3
		 ORDER BY date`,
		userID.String(), from, to,
	)
	if err != nil {
		return nil, storageError("query daily activity", err)
	}
	defer rows.Close()

	var out []*activity.DailyActivity
	for rows.Next() {
		d, err := scanDailyActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDailyActivity(row pgx.Row) (*activity.DailyActivity, error) {
	var (
		d      activity.DailyActivity
		userID string
		goals  []byte
		events []byte
	)
	err := row.Scan(
		&userID,
		&d.Date,
		&d.MockTestsAttempted,
		&d.DSAProblemsAttempted,
		&d.DSAProblemsSolved,
		&d.TimeSpentMockTests,
		&d.TimeSpentDSA,
		&d.TotalTimeSpent,
		&d.MockTestAccuracy,
		&d.DSAAccuracy,
		&goals,
		&d.IsActiveDay,
		&events,
		&d.Version,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan daily activity: %w", err)
	}

	d.UserID = shared.UserID(userID)
	if err := json.Unmarshal(goals, &d.Goals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal goals: %w", err)
	}
	if err := json.Unmarshal(events, &d.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	if d.Events == nil {
		d.Events = make([]activity.Event, 0)
	}
	return &d, nil
}
