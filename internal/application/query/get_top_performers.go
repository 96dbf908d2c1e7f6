package query

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/application/cachekey"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/pkg/logger"
)

// GetTopPerformersQuery содержит параметры витрины лучших.
type GetTopPerformersQuery struct {
	FilterParams

	// Limit - размер витрины (по умолчанию 3).
	Limit int
}

// TopPerformersResult - витрина лучших с наградами.
type TopPerformersResult struct {
	Rows    []leaderboard.Row   `json:"rows"`
	Filters leaderboard.Filters `json:"filters"`
}

// GetTopPerformersHandler обрабатывает запрос витрины лучших.
type GetTopPerformersHandler struct {
	engine Leaderboard
	cache  ReadCache
	ttl    CacheTTLs
	log    *logger.Logger
}

// NewGetTopPerformersHandler создаёт обработчик.
func NewGetTopPerformersHandler(engine Leaderboard, cache ReadCache, ttl CacheTTLs, log *logger.Logger) *GetTopPerformersHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetTopPerformersHandler{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		log:    log.With(logger.Component("get_top_performers")),
	}
}

// Handle выполняет запрос.
func (h *GetTopPerformersHandler) Handle(ctx context.Context, q GetTopPerformersQuery) (*TopPerformersResult, error) {
	ctx, span := tracer.Start(ctx, "GetTopPerformers")
	defer span.End()

	f, err := q.Filters()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = leaderboard.DefaultTopPerformers
	}

	key := cachekey.TopPerformers(f, limit)
	return getOrCompute(ctx, h.cache, h.log, key, h.ttl.Leaderboard, func(ctx context.Context) (*TopPerformersResult, error) {
		rows, err := h.engine.TopPerformers(ctx, f, limit)
		if err != nil {
			return nil, err
		}
		return &TopPerformersResult{Rows: rows, Filters: f}, nil
	})
}

// GetFilterOptionsHandler возвращает значения для контролов фильтра.
type GetFilterOptionsHandler struct {
	engine Leaderboard
	cache  ReadCache
	ttl    CacheTTLs
	log    *logger.Logger
}

// NewGetFilterOptionsHandler создаёт обработчик.
func NewGetFilterOptionsHandler(engine Leaderboard, cache ReadCache, ttl CacheTTLs, log *logger.Logger) *GetFilterOptionsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetFilterOptionsHandler{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		log:    log.With(logger.Component("get_filter_options")),
	}
}

// Handle выполняет запрос.
func (h *GetFilterOptionsHandler) Handle(ctx context.Context) (*leaderboard.FilterOptions, error) {
	ctx, span := tracer.Start(ctx, "GetFilterOptions")
	defer span.End()

	return getOrCompute(ctx, h.cache, h.log, cachekey.FilterOptions(), h.ttl.FilterOptions, h.engine.FilterOptions)
}
