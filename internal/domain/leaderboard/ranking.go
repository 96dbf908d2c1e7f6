package leaderboard

import (
	"sort"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
)

// Accumulate группирует submissions по пользователю.
// Используется хранилищами без собственного GROUP BY.
func Accumulate(subs []*submission.Submission, c Criteria) []Totals {
	filter := c.SubmissionFilter()
	byUser := make(map[shared.UserID]*Totals)
	order := make([]shared.UserID, 0)

	for _, s := range subs {
		if !filter.Matches(s) {
			continue
		}
		t, ok := byUser[s.UserID]
		if !ok {
			t = &Totals{UserID: s.UserID}
			byUser[s.UserID] = t
			order = append(order, s.UserID)
		}
		t.Add(s)
	}

	out := make([]Totals, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out
}

// SortRows сортирует строки на месте.
// Для time направление игнорируется: меньшее среднее время всегда выше.
// При равенстве метрики порядок детерминирован: DisplayName, затем UserID.
func SortRows(rows []Row, key SortKey, order SortOrder) {
	metric := func(r Row) float64 {
		switch key {
		case SortByAccuracy:
			return r.OverallAccuracy
		case SortByTime:
			return r.AverageTimePerTest
		default:
			return r.TotalScore
		}
	}

	ascending := order == OrderAsc
	if key == SortByTime {
		ascending = true
	}

	sort.SliceStable(rows, func(i, j int) bool {
		mi, mj := metric(rows[i]), metric(rows[j])
		if mi != mj {
			if ascending {
				return mi < mj
			}
			return mi > mj
		}
		if rows[i].DisplayName != rows[j].DisplayName {
			return rows[i].DisplayName < rows[j].DisplayName
		}
		return rows[i].UserID < rows[j].UserID
	})
}

// Paginate вырезает страницу и проставляет позиционные ранги:
// rank строки i (с 1) на странице p = (p-1)*pageSize + i.
func Paginate(rows []Row, p shared.Pagination) ([]Row, PageInfo) {
	total := len(rows)
	info := PageInfo{
		Page:       p.Page,
		PageSize:   p.Limit(),
		TotalRows:  total,
		TotalPages: p.TotalPages(total),
		HasPrev:    p.Page > 1,
	}
	info.HasNext = p.Page < info.TotalPages

	from := p.Offset()
	if from < 0 || from >= total {
		return []Row{}, info
	}
	to := min(from+p.Limit(), total)

	page := make([]Row, to-from)
	copy(page, rows[from:to])
	for i := range page {
		page[i].Rank = from + i + 1
	}
	return page, info
}
