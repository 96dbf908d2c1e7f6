package leaderboard

import (
	"context"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
)

// Store - агрегирующий доступ к журналу submissions.
// Все методы работают только с exam-type submissions.
// Реализация: память (для тестов и локального запуска) и PostgreSQL (GROUP BY).
type Store interface {
	// Aggregate возвращает суммы по каждому пользователю, у которого есть
	// подходящие submissions. Порядок не гарантирован.
	Aggregate(ctx context.Context, c Criteria) ([]Totals, error)

	// AggregateUser возвращает суммы одного пользователя.
	// При отсутствии подходящих submissions TestCount == 0.
	AggregateUser(ctx context.Context, userID shared.UserID, c Criteria) (Totals, error)

	// CountScoreAbove считает других пользователей, чей totalScore строго больше score.
	CountScoreAbove(ctx context.Context, c Criteria, score float64, exclude shared.UserID) (int, error)

	// DistinctFilterOptions возвращает отсортированные уникальные exam/subject/chapter.
	DistinctFilterOptions(ctx context.Context) (FilterOptions, error)
}

// QueryOptions - сортировка и пагинация запроса.
type QueryOptions struct {
	SortBy    SortKey
	SortOrder SortOrder
	Page      int
	PageSize  int
}

// DefaultQueryOptions возвращает опции по умолчанию.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{
		SortBy:    SortByScore,
		SortOrder: OrderDesc,
		Page:      1,
		PageSize:  shared.DefaultPageSize,
	}
}

// WithPage устанавливает номер страницы.
func (o QueryOptions) WithPage(page int) QueryOptions {
	if page < 1 {
		page = 1
	}
	o.Page = min(page, shared.MaxPage)
	return o
}

// WithPageSize устанавливает размер страницы.
func (o QueryOptions) WithPageSize(size int) QueryOptions {
	if size < 1 {
		size = shared.DefaultPageSize
	}
	if size > shared.MaxPageSize {
		size = shared.MaxPageSize
	}
	o.PageSize = size
	return o
}

// Pagination возвращает нормализованную пагинацию.
func (o QueryOptions) Pagination() shared.Pagination {
	return shared.NewPagination(o.Page, o.PageSize)
}
