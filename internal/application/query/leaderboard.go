package query

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// Leaderboard is the read surface of leaderboard.Engine.
type Leaderboard interface {
	Query(ctx context.Context, f leaderboard.Filters, opts leaderboard.QueryOptions) (*leaderboard.Page, error)
	UserPosition(ctx context.Context, userID shared.UserID, f leaderboard.Filters) (*leaderboard.Position, error)
	TopPerformers(ctx context.Context, f leaderboard.Filters, limit int) ([]leaderboard.Row, error)
	FilterOptions(ctx context.Context) (*leaderboard.FilterOptions, error)
}

// FilterParams - фильтры в сыром виде, как их передаёт обработчик маршрута.
type FilterParams struct {
	Exam      string
	Subject   string
	Chapter   string
	Timeframe string
}

// Filters разбирает и проверяет фильтры.
func (p FilterParams) Filters() (leaderboard.Filters, error) {
	tf, err := leaderboard.ParseTimeframe(p.Timeframe)
	if err != nil {
		return leaderboard.Filters{}, err
	}
	return leaderboard.Filters{
		Exam:      p.Exam,
		Subject:   p.Subject,
		Chapter:   p.Chapter,
		Timeframe: tf,
	}.Normalize(), nil
}
