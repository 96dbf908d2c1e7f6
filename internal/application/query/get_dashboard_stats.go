package query

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/prephub/prephub-analytics/internal/application/cachekey"
	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/internal/domain/user"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/retry"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD STATS QUERY
// Lifetime stats plus a recent window derived from day rollups and the
// submission log. Invalidated by RecordSubmission.
// ══════════════════════════════════════════════════════════════════════════════

// DashboardWindowDays is the length of the recent window, today included.
const DashboardWindowDays = 7

// GetDashboardStatsQuery contains parameters for the dashboard query.
type GetDashboardStatsQuery struct {
	UserID string
}

// LifetimeDTO mirrors stats.UserStats for the dashboard.
type LifetimeDTO struct {
	TotalTestsAttempted     int       `json:"total_tests_attempted"`
	TotalDSAAttempted       int       `json:"total_dsa_attempted"`
	TotalDSASolved          int       `json:"total_dsa_solved"`
	TotalTimeSpentMockTests int       `json:"total_time_spent_mock_tests"`
	TotalTimeSpentDSA       int       `json:"total_time_spent_dsa"`
	OverallAccuracy         float64   `json:"overall_accuracy"`
	CurrentStreak           int       `json:"current_streak"`
	LongestStreak           int       `json:"longest_streak"`
	StreakAlive             bool      `json:"streak_alive"`
	LastActivityDate        time.Time `json:"last_activity_date,omitempty"`
}

// DayDTO is one day of the window.
type DayDTO struct {
	Date                 string  `json:"date"`
	MockTestsAttempted   int     `json:"mock_tests_attempted"`
	DSAProblemsAttempted int     `json:"dsa_problems_attempted"`
	DSAProblemsSolved    int     `json:"dsa_problems_solved"`
	TotalTimeSpent       int     `json:"total_time_spent"`
	MockTestAccuracy     float64 `json:"mock_test_accuracy"`
	DSAAccuracy          float64 `json:"dsa_accuracy"`
	IsActiveDay          bool    `json:"is_active_day"`
	GoalsAchieved        int     `json:"goals_achieved"`
	AllGoalsAchieved     bool    `json:"all_goals_achieved"`
}

// GoalProgressDTO shows today's progress against the thresholds.
type GoalProgressDTO struct {
	MockTests          int  `json:"mock_tests"`
	MockTestsTarget    int  `json:"mock_tests_target"`
	DSAProblems        int  `json:"dsa_problems"`
	DSAProblemsTarget  int  `json:"dsa_problems_target"`
	StudyMinutes       int  `json:"study_minutes"`
	StudyMinutesTarget int  `json:"study_minutes_target"`
	AllAchieved        bool `json:"all_achieved"`
}

// WeeklyDTO sums the window.
type WeeklyDTO struct {
	TestsAttempted  int     `json:"tests_attempted"`
	DSAAttempted    int     `json:"dsa_attempted"`
	DSASolved       int     `json:"dsa_solved"`
	MinutesSpent    int     `json:"minutes_spent"`
	ActiveDays      int     `json:"active_days"`
	GoalDaysMet     int     `json:"goal_days_met"`
	Submissions     int     `json:"submissions"`
	AverageAccuracy float64 `json:"average_accuracy"`
}

// DashboardStats is the dashboard read model. Days is oldest first and
// always DashboardWindowDays long; days without a rollup are zero.
type DashboardStats struct {
	UserID      string          `json:"user_id"`
	DisplayName string          `json:"display_name"`
	Lifetime    LifetimeDTO     `json:"lifetime"`
	Today       DayDTO          `json:"today"`
	Goals       GoalProgressDTO `json:"goals"`
	Days        []DayDTO        `json:"days"`
	Weekly      WeeklyDTO       `json:"weekly"`
	GeneratedAt time.Time       `json:"generated_at"`

	// StatsVersion is the stats version the view was built from.
	StatsVersion int64 `json:"stats_version"`
}

// GetDashboardStatsHandler handles dashboard queries.
type GetDashboardStatsHandler struct {
	users       user.Repository
	stats       stats.Repository
	days        activity.Repository
	submissions submission.Repository
	goals       activity.GoalThresholds
	cache       ReadCache
	ttl         CacheTTLs
	cal         timeutil.Calendar
	log         *logger.Logger
}

// NewGetDashboardStatsHandler creates a new handler. cache may be nil.
func NewGetDashboardStatsHandler(
	users user.Repository,
	statsRepo stats.Repository,
	days activity.Repository,
	submissions submission.Repository,
	goals activity.GoalThresholds,
	cache ReadCache,
	ttl CacheTTLs,
	cal timeutil.Calendar,
	log *logger.Logger,
) *GetDashboardStatsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetDashboardStatsHandler{
		users:       users,
		stats:       statsRepo,
		days:        days,
		submissions: submissions,
		goals:       goals,
		cache:       cache,
		ttl:         ttl,
		cal:         cal,
		log:         log.With(logger.Component("get_dashboard_stats")),
	}
}

// Handle executes the query.
func (h *GetDashboardStatsHandler) Handle(ctx context.Context, q GetDashboardStatsQuery) (*DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "GetDashboardStats")
	defer span.End()

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", userID.String()))

	// Stats are read outside the cache: an entry built from an older
	// version is recomputed even if its invalidation was lost.
	s, err := retry.Value(ctx, storageReads, func(ctx context.Context) (*stats.UserStats, error) {
		return h.loadStats(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	fresh := func(d *DashboardStats) bool { return d.StatsVersion == s.Version }

	return getOrComputeFresh(ctx, h.cache, h.log, cachekey.DashboardStats(userID), h.ttl.Dashboard, fresh, func(ctx context.Context) (*DashboardStats, error) {
		return h.compute(ctx, userID, s)
	})
}

func (h *GetDashboardStatsHandler) loadStats(ctx context.Context, userID shared.UserID) (*stats.UserStats, error) {
	s, err := h.stats.Get(ctx, userID)
	if errors.Is(err, shared.ErrStatsNotFound) {
		return stats.New(userID), nil
	}
	if err != nil {
		return nil, shared.WrapError("dashboard", "GetStats", shared.ErrServiceUnavailable, "failed to load stats", err)
	}
	return s, nil
}

func (h *GetDashboardStatsHandler) compute(ctx context.Context, userID shared.UserID, s *stats.UserStats) (*DashboardStats, error) {
	now := h.cal.Now()
	today := h.cal.StartOfDay(now)
	from := h.cal.AddDays(today, -(DashboardWindowDays - 1))
	to := h.cal.AddDays(today, 1)

	var (
		u       *user.User
		rollups []*activity.DailyActivity
		recent  []*submission.Submission
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		u, err = h.users.FindByID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		rollups, err = h.days.Range(gctx, userID, from, to)
		if err != nil {
			return shared.WrapError("dashboard", "GetRollups", shared.ErrServiceUnavailable, "failed to load daily activity", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		recent, err = h.submissions.Find(gctx, submission.Filter{UserID: userID, Since: from})
		if err != nil {
			return shared.WrapError("dashboard", "GetSubmissions", shared.ErrServiceUnavailable, "failed to load submissions", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDay := make(map[string]*activity.DailyActivity, len(rollups))
	for _, d := range rollups {
		byDay[h.cal.FormatDay(d.Date)] = d
	}

	out := &DashboardStats{
		UserID:      userID.String(),
		DisplayName: u.DisplayName,
		Lifetime:    lifetimeDTO(s, now, h.cal),
		Days:        make([]DayDTO, 0, DashboardWindowDays),
		GeneratedAt: now,

		StatsVersion: s.Version,
	}

	for i := 0; i < DashboardWindowDays; i++ {
		date := h.cal.AddDays(from, i)
		label := h.cal.FormatDay(date)
		d, ok := byDay[label]
		if !ok {
			d = activity.New(userID, date, h.goals)
		}
		day := dayDTO(label, d)
		out.Days = append(out.Days, day)

		out.Weekly.TestsAttempted += d.MockTestsAttempted
		out.Weekly.DSAAttempted += d.DSAProblemsAttempted
		out.Weekly.DSASolved += d.DSAProblemsSolved
		out.Weekly.MinutesSpent += d.TotalTimeSpent
		if d.IsActiveDay {
			out.Weekly.ActiveDays++
		}
		if day.AllGoalsAchieved {
			out.Weekly.GoalDaysMet++
		}

		if i == DashboardWindowDays-1 {
			out.Today = day
			out.Goals = goalProgress(d)
		}
	}

	out.Weekly.Submissions = len(recent)
	if len(recent) > 0 {
		var sum float64
		for _, sub := range recent {
			sum += sub.Accuracy
		}
		out.Weekly.AverageAccuracy = sum / float64(len(recent))
	}

	return out, nil
}

func lifetimeDTO(s *stats.UserStats, now time.Time, cal timeutil.Calendar) LifetimeDTO {
	return LifetimeDTO{
		TotalTestsAttempted:     s.TotalTestsAttempted,
		TotalDSAAttempted:       s.TotalDSAAttempted,
		TotalDSASolved:          s.TotalDSASolved,
		TotalTimeSpentMockTests: s.TotalTimeSpentMockTests,
		TotalTimeSpentDSA:       s.TotalTimeSpentDSA,
		OverallAccuracy:         s.OverallAccuracy,
		CurrentStreak:           s.CurrentStreak,
		LongestStreak:           s.LongestStreak,
		StreakAlive:             s.IsStreakAlive(now, cal),
		LastActivityDate:        s.LastActivityDate,
	}
}

func dayDTO(label string, d *activity.DailyActivity) DayDTO {
	return DayDTO{
		Date:                 label,
		MockTestsAttempted:   d.MockTestsAttempted,
		DSAProblemsAttempted: d.DSAProblemsAttempted,
		DSAProblemsSolved:    d.DSAProblemsSolved,
		TotalTimeSpent:       d.TotalTimeSpent,
		MockTestAccuracy:     d.MockTestAccuracy,
		DSAAccuracy:          d.DSAAccuracy,
		IsActiveDay:          d.IsActiveDay,
		GoalsAchieved:        d.Goals.AchievedCount(),
		AllGoalsAchieved:     d.Goals.AllAchieved(),
	}
}

func goalProgress(d *activity.DailyActivity) GoalProgressDTO {
	return GoalProgressDTO{
		MockTests:          d.MockTestsAttempted,
		MockTestsTarget:    d.Goals.MockTests,
		DSAProblems:        d.DSAProblemsSolved,
		DSAProblemsTarget:  d.Goals.DSAProblems,
		StudyMinutes:       d.TotalTimeSpent,
		StudyMinutesTarget: d.Goals.StudyMinutes,
		AllAchieved:        d.Goals.AllAchieved(),
	}
}
