// Package analytics assembles the command and query handlers into the
// surface consumed by route handlers and background jobs.
package analytics

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/application/command"
	"github.com/prephub/prephub-analytics/internal/application/query"
	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/stats"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/internal/domain/user"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// Dependencies are the collaborators of Service.
type Dependencies struct {
	Users       user.Repository
	Submissions submission.Repository
	Stats       stats.Repository
	Days        activity.Repository
	Leaderboard leaderboard.Store

	// Cache may be nil; every read then goes to storage.
	Cache query.ReadCache

	Calendar timeutil.Calendar
	Goals    activity.GoalThresholds
	TTLs     query.CacheTTLs
	Engine   leaderboard.EngineConfig
	Logger   *logger.Logger
}

// Service is the analytics application service.
type Service struct {
	recordSubmission *command.RecordSubmissionHandler
	recordSession    *command.RecordSessionEventHandler

	dashboard     *query.GetDashboardStatsHandler
	leaderboard   *query.GetLeaderboardHandler
	position      *query.GetUserPositionHandler
	topPerformers *query.GetTopPerformersHandler
	filterOptions *query.GetFilterOptionsHandler
}

// NewService wires all handlers from deps.
func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	// A nil interface value must stay nil, not become a typed nil.
	var invalidator command.CacheInvalidator
	if deps.Cache != nil {
		invalidator = deps.Cache
	}

	aggregator := command.NewStatsAggregator(deps.Users, deps.Stats, deps.Calendar, log)
	rollup := command.NewActivityRollup(deps.Days, deps.Calendar, deps.Goals, log)
	engine := leaderboard.NewEngine(deps.Leaderboard, deps.Users, deps.Calendar, deps.Engine)

	return &Service{
		recordSubmission: command.NewRecordSubmissionHandler(deps.Submissions, aggregator, rollup, invalidator, deps.Calendar, log),
		recordSession:    command.NewRecordSessionEventHandler(rollup),

		dashboard: query.NewGetDashboardStatsHandler(
			deps.Users, deps.Stats, deps.Days, deps.Submissions,
			deps.Goals, deps.Cache, deps.TTLs, deps.Calendar, log,
		),
		leaderboard:   query.NewGetLeaderboardHandler(engine, deps.Cache, deps.TTLs, log),
		position:      query.NewGetUserPositionHandler(engine, deps.Cache, deps.TTLs, log),
		topPerformers: query.NewGetTopPerformersHandler(engine, deps.Cache, deps.TTLs, log),
		filterOptions: query.NewGetFilterOptionsHandler(engine, deps.Cache, deps.TTLs, log),
	}
}

// RecordSubmission validates and stores one attempt and updates the derived views.
func (s *Service) RecordSubmission(ctx context.Context, userID string, payload submission.Payload) (*command.RecordSubmissionResult, error) {
	return s.recordSubmission.Handle(ctx, command.RecordSubmissionCommand{UserID: userID, Payload: payload})
}

// RecordLogin logs a login on today's rollup.
func (s *Service) RecordLogin(ctx context.Context, userID string) error {
	_, err := s.recordSession.Handle(ctx, command.RecordSessionEventCommand{UserID: userID, Type: activity.EventLogin})
	return err
}

// RecordLogout logs a logout on today's rollup.
func (s *Service) RecordLogout(ctx context.Context, userID string) error {
	_, err := s.recordSession.Handle(ctx, command.RecordSessionEventCommand{UserID: userID, Type: activity.EventLogout})
	return err
}

// GetDashboardStats returns lifetime stats plus the recent window.
func (s *Service) GetDashboardStats(ctx context.Context, userID string) (*query.DashboardStats, error) {
	return s.dashboard.Handle(ctx, query.GetDashboardStatsQuery{UserID: userID})
}

// GetLeaderboard returns one leaderboard page.
func (s *Service) GetLeaderboard(ctx context.Context, q query.GetLeaderboardQuery) (*leaderboard.Page, error) {
	return s.leaderboard.Handle(ctx, q)
}

// GetUserPosition returns one user's rank under the filters.
// shared.ErrLeaderboardNoData means the user has no qualifying submissions.
func (s *Service) GetUserPosition(ctx context.Context, userID string, f query.FilterParams) (*leaderboard.Position, error) {
	return s.position.Handle(ctx, query.GetUserPositionQuery{UserID: userID, FilterParams: f})
}

// GetTopPerformers returns the best rows by score with badges.
func (s *Service) GetTopPerformers(ctx context.Context, f query.FilterParams, limit int) (*query.TopPerformersResult, error) {
	return s.topPerformers.Handle(ctx, query.GetTopPerformersQuery{FilterParams: f, Limit: limit})
}

// GetFilterOptions returns the distinct exam/subject/chapter values.
func (s *Service) GetFilterOptions(ctx context.Context) (*leaderboard.FilterOptions, error) {
	return s.filterOptions.Handle(ctx)
}
