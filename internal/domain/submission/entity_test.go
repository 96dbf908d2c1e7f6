package submission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

var now = time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func examPayload() Payload {
	return Payload{
		Category:         "mocktest",
		Exam:             " JEE ",
		Subject:          "Physics",
		Chapter:          "Optics",
		TotalQuestions:   10,
		CorrectAnswers:   8,
		IncorrectAnswers: 1,
		SkippedQuestions: 1,
		TimeTakenSeconds: 1200,
		Score:            80,
		MaxScore:         100,
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"exam-type", CategoryExam},
		{"mocktest", CategoryExam},
		{"Mock-Test", CategoryExam},
		{" dsa ", CategoryDSA},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseCategory("quiz")
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)
	assert.True(t, shared.IsValidation(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	m, err = ParseMode("MANUAL")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, m)

	_, err = ParseMode("batch")
	assert.ErrorIs(t, err, shared.ErrInvalidMode)
}

func TestNew_Exam(t *testing.T) {
	s, err := New("u1", examPayload(), now)
	require.NoError(t, err)

	assert.NotEqual(t, [16]byte{}, [16]byte(s.ID))
	assert.Equal(t, CategoryExam, s.Category)
	assert.Equal(t, "JEE", s.Exam)
	assert.Equal(t, 80.0, s.Accuracy, "derived from correct/total")
	assert.Equal(t, now, s.SubmittedAt)
	assert.Equal(t, ModeAuto, s.Mode)
	assert.Equal(t, 20, s.TimeTakenMinutes())
	assert.True(t, s.IsRanked())
	assert.False(t, s.IsSolved())
}

func TestNew_ExplicitAccuracyAndTimestamp(t *testing.T) {
	p := examPayload()
	p.Accuracy = ptr(75)
	p.SubmittedAt = now.Add(-time.Hour)

	s, err := New("u1", p, now)
	require.NoError(t, err)
	assert.Equal(t, 75.0, s.Accuracy)
	assert.Equal(t, now.Add(-time.Hour), s.SubmittedAt)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Payload)
		want   error
	}{
		{"count mismatch", func(p *Payload) { p.SkippedQuestions = 3 }, shared.ErrQuestionCountMismatch},
		{"accuracy above 100", func(p *Payload) { p.Accuracy = ptr(101) }, shared.ErrAccuracyOutOfRange},
		{"negative accuracy", func(p *Payload) { p.Accuracy = ptr(-1) }, shared.ErrAccuracyOutOfRange},
		{"score over max", func(p *Payload) { p.Score = 120 }, shared.ErrScoreExceedsMax},
		{"negative time", func(p *Payload) { p.TimeTakenSeconds = -5 }, shared.ErrNegativeValue},
		{"negative count", func(p *Payload) { p.CorrectAnswers = -1; p.IncorrectAnswers = 10 }, shared.ErrNegativeValue},
		{"unknown category", func(p *Payload) { p.Category = "essay" }, shared.ErrInvalidCategory},
		{"unknown mode", func(p *Payload) { p.Mode = "robot" }, shared.ErrInvalidMode},
		{"submitted in the future", func(p *Payload) { p.SubmittedAt = now.Add(time.Second) }, shared.ErrSubmittedInFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := examPayload()
			tt.mutate(&p)

			s, err := New("u1", p, now)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestNew_InvalidUser(t *testing.T) {
	_, err := New("  ", examPayload(), now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestDSASolvedThreshold(t *testing.T) {
	p := Payload{Category: "dsa", Topic: "graphs", TotalQuestions: 4, CorrectAnswers: 2, IncorrectAnswers: 2}
	s, err := New("u1", p, now)
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.Accuracy)
	assert.True(t, s.IsSolved(), "half correct counts as solved")
	assert.False(t, s.IsRanked())

	p.CorrectAnswers, p.IncorrectAnswers = 1, 3
	s, err = New("u1", p, now)
	require.NoError(t, err)
	assert.False(t, s.IsSolved())
}

func TestSecondsToMinutes(t *testing.T) {
	assert.Equal(t, 0, SecondsToMinutes(29))
	assert.Equal(t, 1, SecondsToMinutes(30))
	assert.Equal(t, 20, SecondsToMinutes(1200))
	assert.Equal(t, 0.0, DeriveAccuracy(0, 0))
}

func TestFilter_Matches(t *testing.T) {
	s, err := New("u1", examPayload(), now)
	require.NoError(t, err)

	assert.True(t, Filter{}.Matches(s))
	assert.True(t, Filter{UserID: "u1", Category: CategoryExam, Exam: "JEE"}.Matches(s))
	assert.False(t, Filter{UserID: "u2"}.Matches(s))
	assert.False(t, Filter{Category: CategoryDSA}.Matches(s))
	assert.False(t, Filter{Subject: "Chemistry"}.Matches(s))
	assert.True(t, Filter{Since: now}.Matches(s), "since is inclusive")
	assert.False(t, Filter{Until: now}.Matches(s), "until is exclusive")
	assert.True(t, Filter{Until: now.Add(time.Second)}.Matches(s))
}
