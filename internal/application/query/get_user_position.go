package query

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/application/cachekey"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER POSITION QUERY
// Место одного пользователя при тех же фильтрах, без сортировки всей выборки.
// "Нет данных" возвращается как shared.ErrLeaderboardNoData и не кешируется.
// ══════════════════════════════════════════════════════════════════════════════

// GetUserPositionQuery содержит параметры запроса.
type GetUserPositionQuery struct {
	UserID string
	FilterParams
}

// GetUserPositionHandler обрабатывает запрос места пользователя.
type GetUserPositionHandler struct {
	engine Leaderboard
	cache  ReadCache
	ttl    CacheTTLs
	log    *logger.Logger
}

// NewGetUserPositionHandler создаёт обработчик.
func NewGetUserPositionHandler(engine Leaderboard, cache ReadCache, ttl CacheTTLs, log *logger.Logger) *GetUserPositionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetUserPositionHandler{
		engine: engine,
		cache:  cache,
		ttl:    ttl,
		log:    log.With(logger.Component("get_user_position")),
	}
}

// Handle выполняет запрос.
func (h *GetUserPositionHandler) Handle(ctx context.Context, q GetUserPositionQuery) (*leaderboard.Position, error) {
	ctx, span := tracer.Start(ctx, "GetUserPosition")
	defer span.End()

	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	f, err := q.Filters()
	if err != nil {
		return nil, err
	}

	key := cachekey.UserPosition(userID, f)
	return getOrCompute(ctx, h.cache, h.log, key, h.ttl.Position, func(ctx context.Context) (*leaderboard.Position, error) {
		return h.engine.UserPosition(ctx, userID, f)
	})
}
