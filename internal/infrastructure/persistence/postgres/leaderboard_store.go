package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD STORE IMPLEMENTATION
// Суммы по пользователям считаются одним GROUP BY по submissions.
// Производные метрики и сортировка остаются в домене.
// ══════════════════════════════════════════════════════════════════════════════

const totalsSelect = `SELECT user_id,
	COALESCE(SUM(score), 0),
	COALESCE(SUM(max_score), 0),
	COALESCE(SUM(accuracy), 0),
	COALESCE(SUM(time_taken_seconds), 0),
	COUNT(*),
	COALESCE(MAX(score), 0),
	MAX(submitted_at)
	FROM submissions`

// LeaderboardStore implements leaderboard.Store for PostgreSQL.
type LeaderboardStore struct {
	conn *Connection
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(conn *Connection) *LeaderboardStore {
	return &LeaderboardStore{conn: conn}
}

// Aggregate возвращает суммы по каждому пользователю с подходящими submissions.
func (r *LeaderboardStore) Aggregate(ctx context.Context, c leaderboard.Criteria) ([]leaderboard.Totals, error) {
	w := submissionWhere(c.SubmissionFilter())

	rows, err := r.conn.Query(ctx, totalsSelect+w.String()+" GROUP BY user_id", w.args...)
	if err != nil {
		return nil, storageError("aggregate leaderboard", err)
	}
	defer rows.Close()

	var out []leaderboard.Totals
	for rows.Next() {
		var (
			t      leaderboard.Totals
			userID string
			recent *time.Time
		)
		if err := rows.Scan(&userID, &t.TotalScore, &t.TotalMaxScore, &t.SumAccuracy,
			&t.TotalTimeTaken, &t.TestCount, &t.BestScore, &recent); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard totals: %w", err)
		}
		t.UserID = shared.UserID(userID)
		if recent != nil {
			t.MostRecentDate = *recent
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AggregateUser возвращает суммы одного пользователя; TestCount == 0, если данных нет.
func (r *LeaderboardStore) AggregateUser(ctx context.Context, userID shared.UserID, c leaderboard.Criteria) (leaderboard.Totals, error) {
	filter := c.SubmissionFilter()
	filter.UserID = userID
	w := submissionWhere(filter)

	var (
		t      = leaderboard.Totals{UserID: userID}
		ignore string
		recent *time.Time
	)
	err := r.conn.QueryRow(ctx, totalsSelect+w.String()+" GROUP BY user_id", w.args...).Scan(
		&ignore, &t.TotalScore, &t.TotalMaxScore, &t.SumAccuracy,
		&t.TotalTimeTaken, &t.TestCount, &t.BestScore, &recent,
	)
	if err != nil {
		if IsNoRows(err) {
			return t, nil
		}
		return t, storageError("aggregate user totals", err)
	}
	if recent != nil {
		t.MostRecentDate = *recent
	}
	return t, nil
}

// CountScoreAbove считает других пользователей, чей totalScore строго больше score.
func (r *LeaderboardStore) CountScoreAbove(ctx context.Context, c leaderboard.Criteria, score float64, exclude shared.UserID) (int, error) {
	w := submissionWhere(c.SubmissionFilter())
	w.add("user_id <> $%d", exclude.String())
	query := `SELECT COUNT(*) FROM (SELECT user_id FROM submissions` + w.String() +
		` GROUP BY user_id HAVING SUM(score) > ` + w.next(score) + `) above`

	var n int
	if err := r.conn.QueryRow(ctx, query, w.args...).Scan(&n); err != nil {
		return 0, storageError("count users above", err)
	}
	return n, nil
}

// DistinctFilterOptions возвращает уникальные exam/subject/chapter ранжируемых submissions.
func (r *LeaderboardStore) DistinctFilterOptions(ctx context.Context) (leaderboard.FilterOptions, error) {
	var opts leaderboard.FilterOptions
	for _, target := range []struct {
		column string
		dest   *[]string
	}{
		{"exam", &opts.Exams},
		{"subject", &opts.Subjects},
		{"chapter", &opts.Chapters},
	} {
		values, err := r.distinct(ctx, target.column)
		if err != nil {
			return leaderboard.FilterOptions{}, err
		}
		*target.dest = values
	}
	return opts, nil
}

// distinct is only called with the fixed column names above.
func (r *LeaderboardStore) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %[1]s FROM submissions WHERE category = $1 AND %[1]s <> '' ORDER BY %[1]s`,
		column,
	)
	rows, err := r.conn.Query(ctx, query, string(submission.CategoryExam))
	if err != nil {
		return nil, storageError("query distinct "+column, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
