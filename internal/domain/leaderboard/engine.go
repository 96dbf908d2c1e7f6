package leaderboard

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/user"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// DefaultTopPerformers - размер витрины лучших по умолчанию.
const DefaultTopPerformers = 3

// EngineConfig - настройки движка.
type EngineConfig struct {
	Badges BadgeRules
	// AwardBadges выключает награды в TopPerformers (feature flag).
	AwardBadges bool
}

// DefaultEngineConfig возвращает настройки по умолчанию.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Badges:      DefaultBadgeRules(),
		AwardBadges: true,
	}
}

// Engine - stateless-агрегация лидерборда поверх Store.
// Любая ошибка хранилища превращается в одну retryable ошибку;
// частичные результаты никогда не возвращаются.
type Engine struct {
	store  Store
	users  user.Repository
	cal    timeutil.Calendar
	config EngineConfig
}

// NewEngine создаёт движок.
func NewEngine(store Store, users user.Repository, cal timeutil.Calendar, config EngineConfig) *Engine {
	return &Engine{
		store:  store,
		users:  users,
		cal:    cal,
		config: config,
	}
}

// Query строит отфильтрованную, отсортированную страницу.
func (e *Engine) Query(ctx context.Context, f Filters, opts QueryOptions) (*Page, error) {
	f, err := validateFilters(f)
	if err != nil {
		return nil, err
	}
	if opts.SortBy == "" {
		opts.SortBy = SortByScore
	}
	if _, err := ParseSortKey(string(opts.SortBy)); err != nil {
		return nil, err
	}
	if opts.SortOrder != OrderAsc {
		opts.SortOrder = OrderDesc
	}

	rows, err := e.rows(ctx, "Query", f.Resolve(e.cal))
	if err != nil {
		return nil, err
	}

	SortRows(rows, opts.SortBy, opts.SortOrder)
	pageRows, info := Paginate(rows, opts.Pagination())

	return &Page{
		Rows:       pageRows,
		Pagination: info,
		Filters:    f,
		SortBy:     opts.SortBy,
		SortOrder:  opts.SortOrder,
	}, nil
}

// UserPosition возвращает место пользователя без сортировки всей выборки:
// rank = 1 + число других пользователей со строго большим totalScore.
// Нет подходящих submissions - shared.ErrLeaderboardNoData.
func (e *Engine) UserPosition(ctx context.Context, userID shared.UserID, f Filters) (*Position, error) {
	f, err := validateFilters(f)
	if err != nil {
		return nil, err
	}
	c := f.Resolve(e.cal)

	totals, err := e.store.AggregateUser(ctx, userID, c)
	if err != nil {
		return nil, unavailable("UserPosition", err)
	}
	if totals.TestCount == 0 {
		return nil, shared.ErrLeaderboardNoData
	}

	above, err := e.store.CountScoreAbove(ctx, c, totals.TotalScore, userID)
	if err != nil {
		return nil, unavailable("UserPosition", err)
	}

	displayName, avatar := "", ""
	u, err := e.users.FindByID(ctx, userID)
	switch {
	case err == nil:
		displayName, avatar = u.DisplayName, u.AvatarURL
	case shared.IsNotFound(err):
		// Профиль удалён, а submissions остались.
	default:
		return nil, unavailable("UserPosition", err)
	}

	row := NewRow(totals, displayName, avatar)
	row.Rank = above + 1
	return &Position{Rank: row.Rank, Totals: row}, nil
}

// TopPerformers возвращает первые limit строк по totalScore с наградами.
func (e *Engine) TopPerformers(ctx context.Context, f Filters, limit int) ([]Row, error) {
	f, err := validateFilters(f)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopPerformers
	}

	rows, err := e.rows(ctx, "TopPerformers", f.Resolve(e.cal))
	if err != nil {
		return nil, err
	}

	SortRows(rows, SortByScore, OrderDesc)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
		if e.config.AwardBadges {
			rows[i].Badges = e.config.Badges.Award(rows[i])
		}
	}
	return rows, nil
}

// FilterOptions возвращает значения для фильтров.
func (e *Engine) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	opts, err := e.store.DistinctFilterOptions(ctx)
	if err != nil {
		return nil, unavailable("FilterOptions", err)
	}
	if opts.Exams == nil {
		opts.Exams = []string{}
	}
	if opts.Subjects == nil {
		opts.Subjects = []string{}
	}
	if opts.Chapters == nil {
		opts.Chapters = []string{}
	}
	return &opts, nil
}

// rows агрегирует и присоединяет профили.
func (e *Engine) rows(ctx context.Context, op string, c Criteria) ([]Row, error) {
	totals, err := e.store.Aggregate(ctx, c)
	if err != nil {
		return nil, unavailable(op, err)
	}
	if len(totals) == 0 {
		return []Row{}, nil
	}

	ids := make([]shared.UserID, len(totals))
	for i, t := range totals {
		ids[i] = t.UserID
	}
	profiles, err := e.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, unavailable(op, err)
	}

	rows := make([]Row, len(totals))
	for i, t := range totals {
		name, avatar := "", ""
		if u, ok := profiles[t.UserID]; ok {
			name, avatar = u.DisplayName, u.AvatarURL
		}
		rows[i] = NewRow(t, name, avatar)
	}
	return rows, nil
}

func validateFilters(f Filters) (Filters, error) {
	f = f.Normalize()
	tf, err := ParseTimeframe(string(f.Timeframe))
	if err != nil {
		return f, err
	}
	f.Timeframe = tf
	return f, nil
}

func unavailable(op string, err error) error {
	return shared.WrapError("leaderboard", op, shared.ErrLeaderboardUnavailable, "aggregation failed", err)
}
