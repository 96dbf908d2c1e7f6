// Package leaderboard содержит доменную модель лидерборда PrepHub.
// Лидерборд ничего не хранит: каждая строка вычисляется во время запроса
// из журнала submissions, поэтому фильтры и сортировки комбинируются свободно.
package leaderboard

import (
	"strings"
	"time"

	"github.com/prephub/prephub-analytics/internal/domain/shared"
	"github.com/prephub/prephub-analytics/internal/domain/submission"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Timeframe - временное окно фильтра.
type Timeframe string

const (
	TimeframeToday Timeframe = "today" // с локальной полуночи
	TimeframeWeek  Timeframe = "week"  // скользящие 7 суток
	TimeframeMonth Timeframe = "month" // с первого числа текущего месяца
	TimeframeAll   Timeframe = "all"
)

// ParseTimeframe разбирает значение фильтра. Пустая строка = all.
func ParseTimeframe(raw string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(raw))); tf {
	case "":
		return TimeframeAll, nil
	case TimeframeToday, TimeframeWeek, TimeframeMonth, TimeframeAll:
		return tf, nil
	default:
		return "", shared.ErrInvalidTimeframe
	}
}

// Since возвращает нижнюю границу окна относительно текущего момента календаря.
// Для all возвращается нулевое время (без ограничения).
func (tf Timeframe) Since(cal timeutil.Calendar) time.Time {
	now := cal.Now()
	switch tf {
	case TimeframeToday:
		return cal.StartOfDay(now)
	case TimeframeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case TimeframeMonth:
		return cal.StartOfMonth(now)
	default:
		return time.Time{}
	}
}

// SortKey - метрика сортировки.
type SortKey string

const (
	SortByScore    SortKey = "score"    // totalScore
	SortByAccuracy SortKey = "accuracy" // overallAccuracy
	SortByTime     SortKey = "time"     // averageTimePerTest, всегда по возрастанию
)

// ParseSortKey разбирает ключ сортировки. Пустая строка = score.
func ParseSortKey(raw string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(raw))); k {
	case "":
		return SortByScore, nil
	case SortByScore, SortByAccuracy, SortByTime:
		return k, nil
	default:
		return "", shared.ErrInvalidSortKey
	}
}

// SortOrder - запрошенное направление.
type SortOrder string

const (
	OrderDesc SortOrder = "desc"
	OrderAsc  SortOrder = "asc"
)

// ParseSortOrder разбирает направление. Всё, кроме "asc", считается desc.
func ParseSortOrder(raw string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(raw), string(OrderAsc)) {
		return OrderAsc
	}
	return OrderDesc
}

// Filters - фильтры запроса лидерборда.
type Filters struct {
	Exam      string    `json:"exam,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Chapter   string    `json:"chapter,omitempty"`
	Timeframe Timeframe `json:"timeframe"`
}

// Normalize обрезает пробелы и подставляет timeframe по умолчанию.
func (f Filters) Normalize() Filters {
	f.Exam = strings.TrimSpace(f.Exam)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Chapter = strings.TrimSpace(f.Chapter)
	if f.Timeframe == "" {
		f.Timeframe = TimeframeAll
	}
	return f
}

// Criteria - фильтры, разрешённые в конкретный момент времени.
// Это то, что уходит в хранилище.
type Criteria struct {
	Exam    string
	Subject string
	Chapter string
	Since   time.Time // включительно; нулевое = без ограничения
}

// Resolve переводит относительный timeframe в абсолютную границу.
func (f Filters) Resolve(cal timeutil.Calendar) Criteria {
	f = f.Normalize()
	return Criteria{
		Exam:    f.Exam,
		Subject: f.Subject,
		Chapter: f.Chapter,
		Since:   f.Timeframe.Since(cal),
	}
}

// SubmissionFilter строит фильтр журнала. Ранжируются только exam-type.
func (c Criteria) SubmissionFilter() submission.Filter {
	return submission.Filter{
		Category: submission.CategoryExam,
		Exam:     c.Exam,
		Subject:  c.Subject,
		Chapter:  c.Chapter,
		Since:    c.Since,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// Totals - сырые суммы по одному пользователю. Их умеет считать любое хранилище
// с GROUP BY; производные метрики вычисляются в NewRow.
type Totals struct {
	UserID         shared.UserID
	TotalScore     float64
	TotalMaxScore  float64
	SumAccuracy    float64
	TotalTimeTaken int64 // секунды
	TestCount      int
	BestScore      float64
	MostRecentDate time.Time
}

// Add добавляет одну submission к суммам.
func (t *Totals) Add(s *submission.Submission) {
	if t.TestCount == 0 || s.Score > t.BestScore {
		t.BestScore = s.Score
	}
	if s.SubmittedAt.After(t.MostRecentDate) {
		t.MostRecentDate = s.SubmittedAt
	}
	t.TotalScore += s.Score
	t.TotalMaxScore += s.MaxScore
	t.SumAccuracy += s.Accuracy
	t.TotalTimeTaken += int64(s.TimeTakenSeconds)
	t.TestCount++
}

// Badge - награда за отдельный порог.
type Badge string

const (
	BadgeAccuracyMaster      Badge = "Accuracy Master"
	BadgeSpeedDemon          Badge = "Speed Demon"
	BadgeConsistentPerformer Badge = "Consistent Performer"
	BadgeHighScorer          Badge = "High Scorer"
)

// Row - строка лидерборда. Rank валиден только внутри текущей выдачи.
type Row struct {
	Rank        int           `json:"rank"`
	UserID      shared.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
	AvatarURL   string        `json:"avatarUrl,omitempty"`

	TotalScore    float64 `json:"totalScore"`
	TotalMaxScore float64 `json:"totalMaxScore"`
	// AverageAccuracy - простое среднее accuracy по тестам.
	AverageAccuracy float64 `json:"averageAccuracy"`
	// OverallAccuracy - 100*totalScore/totalMaxScore. Намеренно отличается от AverageAccuracy.
	OverallAccuracy    float64   `json:"overallAccuracy"`
	TotalTimeTaken     int64     `json:"totalTimeTaken"`
	AverageTimePerTest float64   `json:"averageTimePerTest"`
	TestCount          int       `json:"testCount"`
	BestScore          float64   `json:"bestScore"`
	MostRecentDate     time.Time `json:"mostRecentDate"`

	Badges []Badge `json:"badges,omitempty"`
}

// NewRow вычисляет производные метрики.
func NewRow(t Totals, displayName, avatarURL string) Row {
	r := Row{
		UserID:         t.UserID,
		DisplayName:    displayName,
		AvatarURL:      avatarURL,
		TotalScore:     t.TotalScore,
		TotalMaxScore:  t.TotalMaxScore,
		TotalTimeTaken: t.TotalTimeTaken,
		TestCount:      t.TestCount,
		BestScore:      t.BestScore,
		MostRecentDate: t.MostRecentDate,
	}
	if r.DisplayName == "" {
		r.DisplayName = t.UserID.String()
	}
	if t.TestCount > 0 {
		r.AverageAccuracy = t.SumAccuracy / float64(t.TestCount)
		r.AverageTimePerTest = float64(t.TotalTimeTaken) / float64(t.TestCount)
	}
	if t.TotalMaxScore > 0 {
		r.OverallAccuracy = 100 * t.TotalScore / t.TotalMaxScore
	}
	return r
}

// BadgeRules - пороги наград. Проверки независимы: строка может получить 0..N наград.
type BadgeRules struct {
	AccuracyMaster    float64 // overallAccuracy >=
	SpeedDemonSeconds float64 // averageTimePerTest <=
	ConsistentTests   int     // testCount >=
	HighScorer        float64 // totalScore >=
}

// DefaultBadgeRules возвращает стандартные пороги.
func DefaultBadgeRules() BadgeRules {
	return BadgeRules{
		AccuracyMaster:    95,
		SpeedDemonSeconds: 300,
		ConsistentTests:   10,
		HighScorer:        1000,
	}
}

// Award возвращает награды строки.
func (b BadgeRules) Award(r Row) []Badge {
	badges := make([]Badge, 0, 4)
	if r.OverallAccuracy >= b.AccuracyMaster {
		badges = append(badges, BadgeAccuracyMaster)
	}
	if r.TestCount > 0 && r.AverageTimePerTest <= b.SpeedDemonSeconds {
		badges = append(badges, BadgeSpeedDemon)
	}
	if r.TestCount >= b.ConsistentTests {
		badges = append(badges, BadgeConsistentPerformer)
	}
	if r.TotalScore >= b.HighScorer {
		badges = append(badges, BadgeHighScorer)
	}
	return badges
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// PageInfo - метаданные пагинации.
type PageInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalRows  int  `json:"totalRows"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Page - одна страница лидерборда.
type Page struct {
	Rows       []Row     `json:"rows"`
	Pagination PageInfo  `json:"pagination"`
	Filters    Filters   `json:"filters"`
	SortBy     SortKey   `json:"sortBy"`
	SortOrder  SortOrder `json:"sortOrder"`
}

// Position - положение одного пользователя.
type Position struct {
	Rank   int `json:"rank"`
	Totals Row `json:"totals"`
}

// FilterOptions - значения для контролов фильтра.
type FilterOptions struct {
	Exams    []string `json:"exams"`
	Subjects []string `json:"subjects"`
	Chapters []string `json:"chapters"`
}
