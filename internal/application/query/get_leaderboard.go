package query

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/application/cachekey"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Страница лидерборда с фильтрами, сортировкой и пагинацией.
// Результат кешируется по полному кортежу фильтр+сортировка+страница.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	FilterParams

	// SortBy - score | accuracy | time (по умолчанию score).
	SortBy string

	// SortOrder - asc | desc (по умолчанию desc). Для time игнорируется.
	SortOrder string

	// Page - номер страницы (начиная с 1).
	Page int

	// PageSize - размер страницы (по умолчанию 20, максимум 100).
	PageSize int
}

// Validate разбирает параметры и нормализует пагинацию.
func (q GetLeaderboardQuery) Validate() (leaderboard.Filters, leaderboard.QueryOptions, error) {
	f, err := q.Filters()
	if err != nil {
		return f, leaderboard.QueryOptions{}, err
	}
	key, err := leaderboard.ParseSortKey(q.SortBy)
	if err != nil {
		return f, leaderboard.QueryOptions{}, err
	}

	opts := leaderboard.DefaultQueryOptions().
		WithPage(q.Page).
		WithPageSize(q.PageSize)
	opts.SortBy = key
	opts.SortOrder = leaderboard.ParseSortOrder(q.SortOrder)
	return f, opts, nil
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	engine Leaderboard
	cache  ReadCache
	ttl    CacheTTLs
	log    *logger.Logger
}

// NewGetLeaderboardHandler создаёт обработчик. cache может быть nil.
func NewGetLeaderboardHandler(engine Leaderboard, cache ReadCache, ttl CacheTTLs, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetLeaderboardHandler{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		log:    log.With(logger.Component("get_leaderboard")),
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*leaderboard.Page, error) {
	ctx, span := tracer.Start(ctx, "GetLeaderboard")
	defer span.End()

	f, opts, err := q.Validate()
	if err != nil {
		return nil, err
	}

	key := cachekey.LeaderboardPage(f, opts)
	return getOrCompute(ctx, h.cache, h.log, key, h.ttl.Leaderboard, func(ctx context.Context) (*leaderboard.Page, error) {
		return h.engine.Query(ctx, f, opts)
	})
}
