// Package submission contains the immutable attempt record that every
// statistic and leaderboard view is derived from.
package submission

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Category / Mode
// ═══════════════════════════════════════════════════════════════════════════

// Category is the kind of practice a submission belongs to.
type Category string

const (
	// CategoryExam is a mock exam. The only ranked category.
	CategoryExam Category = "exam-type"
	// CategoryDSA is an algorithm-practice problem.
	CategoryDSA Category = "dsa"
)

// categoryAliases maps accepted input spellings to canonical categories.
var categoryAliases = map[string]Category{
	"exam-type": CategoryExam,
	"mocktest":  CategoryExam,
	"mock-test": CategoryExam,
	"dsa":       CategoryDSA,
}

// ParseCategory resolves an input spelling to a canonical category.
func ParseCategory(raw string) (Category, error) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", shared.ErrInvalidCategory
	}
	return c, nil
}

// IsValid checks if the category is canonical.
func (c Category) IsValid() bool {
	return c == CategoryExam || c == CategoryDSA
}

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// Mode records how the submission was produced.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// ParseMode resolves a mode, defaulting to auto on empty input.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeManual:
		return ModeManual, nil
	default:
		return "", shared.ErrInvalidMode
	}
}

// SolvedAccuracyThreshold is the accuracy at or above which a DSA attempt counts as solved.
const SolvedAccuracyThreshold = 50.0

// ═══════════════════════════════════════════════════════════════════════════
// Submission
// ═══════════════════════════════════════════════════════════════════════════

// Submission is one completed test or problem attempt. Never mutated after creation.
type Submission struct {
	ID       uuid.UUID
	UserID   shared.UserID
	Category Category

	// Classification. Exams use Exam/Subject/Chapter, DSA uses Topic/Difficulty.
	Exam       string
	Subject    string
	Chapter    string
	Topic      string
	Difficulty string

	TotalQuestions   int
	CorrectAnswers   int
	IncorrectAnswers int
	SkippedQuestions int
	Accuracy         float64 // percent, [0,100]
	TimeTakenSeconds int
	Score            float64
	MaxScore         float64

	SubmittedAt time.Time
	Mode        Mode
}

// Payload is the raw input accepted from route handlers.
type Payload struct {
	Category   string
	Exam       string
	Subject    string
	Chapter    string
	Topic      string
	Difficulty string

	TotalQuestions   int
	CorrectAnswers   int
	IncorrectAnswers int
	SkippedQuestions int
	// Accuracy is derived from the answer counts when nil.
	Accuracy         *float64
	TimeTakenSeconds int
	Score            float64
	MaxScore         float64

	// SubmittedAt defaults to now when zero and may not be after now.
	SubmittedAt time.Time
	Mode        string
}

// New validates a payload and builds a submission.
func New(userID shared.UserID, p Payload, now time.Time) (*Submission, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError("submission", "New", shared.ErrInvalidID, "invalid user ID")
	}

	category, err := ParseCategory(p.Category)
	if err != nil {
		return nil, err
	}
	mode, err := ParseMode(p.Mode)
	if err != nil {
		return nil, err
	}

	submittedAt := p.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = now
	}
	if submittedAt.After(now) {
		return nil, shared.ErrSubmittedInFuture
	}

	s := &Submission{
		ID:               uuid.New(),
		UserID:           userID,
		Category:         category,
		Exam:             strings.TrimSpace(p.Exam),
		Subject:          strings.TrimSpace(p.Subject),
		Chapter:          strings.TrimSpace(p.Chapter),
		Topic:            strings.TrimSpace(p.Topic),
		Difficulty:       strings.TrimSpace(p.Difficulty),
		TotalQuestions:   p.TotalQuestions,
		CorrectAnswers:   p.CorrectAnswers,
		IncorrectAnswers: p.IncorrectAnswers,
		SkippedQuestions: p.SkippedQuestions,
		TimeTakenSeconds: p.TimeTakenSeconds,
		Score:            p.Score,
		MaxScore:         p.MaxScore,
		SubmittedAt:      submittedAt,
		Mode:             mode,
	}

	if p.Accuracy != nil {
		s.Accuracy = *p.Accuracy
	} else {
		s.Accuracy = DeriveAccuracy(p.CorrectAnswers, p.TotalQuestions)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the submission invariants.
func (s *Submission) Validate() error {
	if !s.Category.IsValid() {
		return shared.ErrInvalidCategory
	}
	if s.TotalQuestions < 0 || s.CorrectAnswers < 0 || s.IncorrectAnswers < 0 || s.SkippedQuestions < 0 {
		return shared.NewDomainError("submission", "Validate", shared.ErrNegativeValue, "question counts cannot be negative")
	}
	if s.CorrectAnswers+s.IncorrectAnswers+s.SkippedQuestions != s.TotalQuestions {
		return shared.ErrQuestionCountMismatch
	}
	if math.IsNaN(s.Accuracy) || s.Accuracy < 0 || s.Accuracy > 100 {
		return shared.ErrAccuracyOutOfRange
	}
	if s.TimeTakenSeconds < 0 {
		return shared.NewDomainError("submission", "Validate", shared.ErrNegativeValue, "time taken cannot be negative")
	}
	if s.MaxScore < 0 {
		return shared.NewDomainError("submission", "Validate", shared.ErrNegativeValue, "max score cannot be negative")
	}
	if s.Score > s.MaxScore {
		return shared.ErrScoreExceedsMax
	}
	return nil
}

// IsRanked reports whether the submission participates in the leaderboard.
func (s *Submission) IsRanked() bool {
	return s.Category == CategoryExam
}

// IsSolved reports whether a DSA attempt counts as solved.
func (s *Submission) IsSolved() bool {
	return s.Category == CategoryDSA && s.Accuracy >= SolvedAccuracyThreshold
}

// TimeTakenMinutes returns the time taken rounded to whole minutes.
func (s *Submission) TimeTakenMinutes() int {
	return SecondsToMinutes(s.TimeTakenSeconds)
}

// SecondsToMinutes rounds seconds to the nearest whole minute.
func SecondsToMinutes(seconds int) int {
	return int(math.Round(float64(seconds) / 60))
}

// DeriveAccuracy returns 100*correct/total, or 0 for an empty test.
func DeriveAccuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(correct) / float64(total)
}
