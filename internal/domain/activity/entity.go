// Package activity contains the per-day activity rollup: one record per
// (user, local day) with counters, goal tracking and an append-only event log.
// This is a pure domain layer.
package activity

import (
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// ═══════════════════════════════════════════════════════════════════════════
// Events
// ═══════════════════════════════════════════════════════════════════════════

// EventType is the closed set of activity events.
type EventType string

const (
	EventMockTestCompleted EventType = "mocktest_completed"
	EventDSAAttempted      EventType = "dsa_attempted"
	EventDSASolved         EventType = "dsa_solved"
	EventLogin             EventType = "login"
	EventLogout            EventType = "logout"
)

// IsValid checks membership in the closed set.
func (t EventType) IsValid() bool {
	switch t {
	case EventMockTestCompleted, EventDSAAttempted, EventDSASolved, EventLogin, EventLogout:
		return true
	}
	return false
}

// EventDetails carries the optional payload of an event.
type EventDetails struct {
	SubmissionID     string   `json:"submissionId,omitempty"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	TimeTakenSeconds int      `json:"timeTakenSeconds,omitempty"`
	Exam             string   `json:"exam,omitempty"`
	Subject          string   `json:"subject,omitempty"`
	Topic            string   `json:"topic,omitempty"`
}

// Event is one entry in the day's log.
type Event struct {
	Type      EventType    `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Details   EventDetails `json:"details"`
}

// PendingEvent is an event not yet applied to a record.
type PendingEvent struct {
	Type    EventType
	At      time.Time
	Details EventDetails
}

// SubmissionEvents maps a submission to the events it produces.
// A solved DSA attempt yields both dsa_attempted and dsa_solved.
func SubmissionEvents(s *submission.Submission, at time.Time) []PendingEvent {
	acc := s.Accuracy
	details := EventDetails{
		SubmissionID:     s.ID.String(),
		Accuracy:         &acc,
		TimeTakenSeconds: s.TimeTakenSeconds,
		Exam:             s.Exam,
		Subject:          s.Subject,
		Topic:            s.Topic,
	}

	switch s.Category {
	case submission.CategoryExam:
		return []PendingEvent{{Type: EventMockTestCompleted, At: at, Details: details}}
	case submission.CategoryDSA:
		events := []PendingEvent{{Type: EventDSAAttempted, At: at, Details: details}}
		if s.IsSolved() {
			events = append(events, PendingEvent{Type: EventDSASolved, At: at, Details: details})
		}
		return events
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Goals
// ═══════════════════════════════════════════════════════════════════════════

// GoalThresholds are the daily targets.
type GoalThresholds struct {
	MockTests    int
	DSAProblems  int
	StudyMinutes int
}

// DefaultGoalThresholds returns the stock daily targets.
func DefaultGoalThresholds() GoalThresholds {
	return GoalThresholds{
		MockTests:    2,
		DSAProblems:  5,
		StudyMinutes: 60,
	}
}

// Goals are the thresholds of a day plus their achieved flags.
type Goals struct {
	GoalThresholds
	MockTestsAchieved    bool
	DSAProblemsAchieved  bool
	StudyMinutesAchieved bool
}

// AllAchieved reports whether every goal of the day is met.
func (g Goals) AllAchieved() bool {
	return g.MockTestsAchieved && g.DSAProblemsAchieved && g.StudyMinutesAchieved
}

// AchievedCount returns how many goals are met.
func (g Goals) AchievedCount() int {
	n := 0
	for _, ok := range []bool{g.MockTestsAchieved, g.DSAProblemsAchieved, g.StudyMinutesAchieved} {
		if ok {
			n++
		}
	}
	return n
}

// ═══════════════════════════════════════════════════════════════════════════
// DailyActivity
// ═══════════════════════════════════════════════════════════════════════════

// DailyActivity is the rollup of one user's day.
type DailyActivity struct {
	UserID shared.UserID
	// Date is a local midnight.
	Date time.Time

	MockTestsAttempted   int
	DSAProblemsAttempted int
	DSAProblemsSolved    int

	// Minutes. TotalTimeSpent is always the sum of the two.
	TimeSpentMockTests int
	TimeSpentDSA       int
	TotalTimeSpent     int

	MockTestAccuracy float64
	DSAAccuracy      float64

	Goals       Goals
	IsActiveDay bool
	Events      []Event

	// Version is the optimistic-concurrency token. Zero means not yet persisted.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an empty day record. date must already be a local midnight.
func New(userID shared.UserID, date time.Time, thresholds GoalThresholds) *DailyActivity {
	return &DailyActivity{
		UserID: userID,
		Date:   date,
		Goals:  Goals{GoalThresholds: thresholds},
		Events: make([]Event, 0),
	}
}

// AddActivity appends the event and applies its counter effects.
func (d *DailyActivity) AddActivity(t EventType, at time.Time, details EventDetails) error {
	if !t.IsValid() {
		return shared.ErrUnknownEventType
	}

	d.Events = append(d.Events, Event{Type: t, Timestamp: at, Details: details})

	switch t {
	case EventMockTestCompleted:
		d.MockTestsAttempted++
		if details.TimeTakenSeconds > 0 {
			d.TimeSpentMockTests += submission.SecondsToMinutes(details.TimeTakenSeconds)
		}
		if details.Accuracy != nil {
			d.MockTestAccuracy = runningMean(d.MockTestAccuracy, *details.Accuracy, d.MockTestsAttempted)
		}
		d.IsActiveDay = true

	case EventDSAAttempted:
		d.DSAProblemsAttempted++
		if details.TimeTakenSeconds > 0 {
			d.TimeSpentDSA += submission.SecondsToMinutes(details.TimeTakenSeconds)
		}
		d.IsActiveDay = true

	case EventDSASolved:
		d.DSAProblemsSolved++
		if details.Accuracy != nil {
			// Success rate among attempts, so the denominator is attempted.
			d.DSAAccuracy = runningMean(d.DSAAccuracy, *details.Accuracy, max(d.DSAProblemsAttempted, 1))
		}

	case EventLogin, EventLogout:
		// log only
	}

	d.TotalTimeSpent = d.TimeSpentMockTests + d.TimeSpentDSA
	d.CheckDailyGoals()
	return nil
}

// CheckDailyGoals recomputes the achieved flags from the counters.
func (d *DailyActivity) CheckDailyGoals() {
	d.Goals.MockTestsAchieved = d.MockTestsAttempted >= d.Goals.MockTests
	d.Goals.DSAProblemsAchieved = d.DSAProblemsSolved >= d.Goals.DSAProblems
	d.Goals.StudyMinutesAchieved = d.TotalTimeSpent >= d.Goals.StudyMinutes
}

// Clone returns a deep copy safe to mutate.
func (d *DailyActivity) Clone() *DailyActivity {
	c := *d
	c.Events = make([]Event, len(d.Events))
	copy(c.Events, d.Events)
	return &c
}

// runningMean folds sample into mean where n is the count after this sample.
func runningMean(mean, sample float64, n int) float64 {
	if n <= 1 {
		return sample
	}
	return (mean*float64(n-1) + sample) / float64(n)
}
