package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const submissionColumns = `id, user_id, category, exam, subject, chapter, topic, difficulty,
	total_questions, correct_answers, incorrect_answers, skipped_questions,
	accuracy, time_taken_seconds, score, max_score, mode, submitted_at`

// SubmissionRepository implements submission.Repository for PostgreSQL.
type SubmissionRepository struct {
	conn *Connection
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

// Create inserts a submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *submission.Submission) error {
	query := `INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.UserID.String(),
		string(s.Category),
		s.Exam,
		s.Subject,
		s.Chapter,
		s.Topic,
		s.Difficulty,
		s.TotalQuestions,
		s.CorrectAnswers,
		s.IncorrectAnswers,
		s.SkippedQuestions,
		s.Accuracy,
		s.TimeTakenSeconds,
		s.Score,
		s.MaxScore,
		string(s.Mode),
		s.SubmittedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("submission", "Create", shared.ErrAlreadyExists, "submission already exists")
		}
		return storageError("create submission", err)
	}
	return nil
}

// Find returns submissions matching the filter, oldest first unless NewestFirst.
func (r *SubmissionRepository) Find(ctx context.Context, f submission.Filter) ([]*submission.Submission, error) {
	w := submissionWhere(f)
	query := `SELECT ` + submissionColumns + ` FROM submissions` + w.String()

	if f.NewestFirst {
		query += " ORDER BY submitted_at DESC, id"
	} else {
		query += " ORDER BY submitted_at ASC, id"
	}
	if f.Limit > 0 {
		query += " LIMIT " + w.next(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + w.next(f.Offset)
	}

	rows, err := r.conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, storageError("query submissions", err)
	}
	defer rows.Close()

	var out []*submission.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of submissions matching the filter.
func (r *SubmissionRepository) Count(ctx context.Context, f submission.Filter) (int, error) {
	w := submissionWhere(f)

	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, storageError("count submissions", err)
	}
	return n, nil
}

func scanSubmission(row pgx.Row) (*submission.Submission, error) {
	var (
		s        submission.Submission
		userID   string
		category string
		mode     string
	)
	err := row.Scan(
		&s.ID,
		&userID,
		&category,
		&s.Exam,
		&s.Subject,
		&s.Chapter,
		&s.Topic,
		&s.Difficulty,
		&s.TotalQuestions,
		&s.CorrectAnswers,
		&s.IncorrectAnswers,
		&s.SkippedQuestions,
		&s.Accuracy,
		&s.TimeTakenSeconds,
		&s.Score,
		&s.MaxScore,
		&mode,
		&s.SubmittedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}
	s.UserID = shared.UserID(userID)
	s.Category = submission.Category(category)
	s.Mode = submission.Mode(mode)
	return &s, nil
}
