package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	var last int
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_submissions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_user_stats", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_daily_activity", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(128) PRIMARY KEY,
    display_name VARCHAR(200) NOT NULL,
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `DROP TABLE IF EXISTS users;`

const migration002Up = `
CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL,
    category VARCHAR(20) NOT NULL,
    exam VARCHAR(100) NOT NULL DEFAULT '',
    subject VARCHAR(100) NOT NULL DEFAULT '',
    chapter VARCHAR(200) NOT NULL DEFAULT '',
    topic VARCHAR(200) NOT NULL DEFAULT '',
    difficulty VARCHAR(20) NOT NULL DEFAULT '',
    total_questions INTEGER NOT NULL,
    correct_answers INTEGER NOT NULL,
    incorrect_answers INTEGER NOT NULL,
    skipped_questions INTEGER NOT NULL,
    accuracy DOUBLE PRECISION NOT NULL,
    time_taken_seconds INTEGER NOT NULL,
    score DOUBLE PRECISION NOT NULL DEFAULT 0,
    max_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    mode VARCHAR(10) NOT NULL DEFAULT 'auto',
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,

    CONSTRAINT valid_category CHECK (category IN ('exam-type', 'dsa')),
    CONSTRAINT valid_counts CHECK (
        correct_answers >= 0 AND incorrect_answers >= 0 AND skipped_questions >= 0
        AND correct_answers + incorrect_answers + skipped_questions = total_questions
    ),
    CONSTRAINT valid_accuracy CHECK (accuracy >= 0 AND accuracy <= 100),
    CONSTRAINT valid_time CHECK (time_taken_seconds >= 0),
    CONSTRAINT valid_score CHECK (max_score >= 0 AND score <= max_score)
);

CREATE INDEX IF NOT EXISTS idx_submissions_user_date ON submissions(user_id, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_submissions_ranked ON submissions(exam, subject, chapter, submitted_at)
    WHERE category = 'exam-type';
`

const migration002Down = `DROP TABLE IF EXISTS submissions;`

const migration003Up = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id VARCHAR(128) PRIMARY KEY,
    total_tests_attempted INTEGER NOT NULL DEFAULT 0,
    total_dsa_attempted INTEGER NOT NULL DEFAULT 0,
    total_dsa_solved INTEGER NOT NULL DEFAULT 0,
    total_time_spent_mock_tests INTEGER NOT NULL DEFAULT 0,
    total_time_spent_dsa INTEGER NOT NULL DEFAULT 0,
    overall_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date TIMESTAMP WITH TIME ZONE,
    version BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration003Down = `DROP TABLE IF EXISTS user_stats;`

const migration004Up = `
CREATE TABLE IF NOT EXISTS daily_activity (
    user_id VARCHAR(128) NOT NULL,
    date TIMESTAMP WITH TIME ZONE NOT NULL,
    mock_tests_attempted INTEGER NOT NULL DEFAULT 0,
    dsa_problems_attempted INTEGER NOT NULL DEFAULT 0,
    dsa_problems_solved INTEGER NOT NULL DEFAULT 0,
    time_spent_mock_tests INTEGER NOT NULL DEFAULT 0,
    time_spent_dsa INTEGER NOT NULL DEFAULT 0,
    total_time_spent INTEGER NOT NULL DEFAULT 0,
    mock_test_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    dsa_accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
    goals JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_active_day BOOLEAN NOT NULL DEFAULT FALSE,
    events JSONB NOT NULL DEFAULT '[]'::jsonb,
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, date)
);
`

const migration004Down = `DROP TABLE IF EXISTS daily_activity;`
