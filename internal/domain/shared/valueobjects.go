package shared

import (
	"math"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a learner. Issued by the auth collaborator, opaque here.
type UserID string

const maxUserIDLength = 128

// IsValid checks that the ID is non-blank and of sane length.
func (u UserID) IsValid() bool {
	s := strings.TrimSpace(string(u))
	return s != "" && len(s) <= maxUserIDLength
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	u := UserID(strings.TrimSpace(id))
	if !u.IsValid() {
		return "", NewDomainError("user", "Validate", ErrInvalidID, "user ID must be a non-empty string")
	}
	return u, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a half-open time period [From, To).
// A zero From or To means the side is unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	if t.From.IsZero() || t.To.IsZero() {
		return true
	}
	return !t.From.After(t.To)
}

// IsUnbounded returns true when neither side is set.
func (t TimeRange) IsUnbounded() bool {
	return t.From.IsZero() && t.To.IsZero()
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	if !t.From.IsZero() && tm.Before(t.From) {
		return false
	}
	if !t.To.IsZero() && !tm.Before(t.To) {
		return false
	}
	return true
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps (MaxPage-1)*MaxPageSize inside int.
	MaxPage = math.MaxInt / MaxPageSize
)

// Offset returns the offset for slicing or database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (min(p.Page, MaxPage) - 1) * p.Limit()
}

// Limit returns the effective page size.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// TotalPages returns the page count for total rows.
func (p Pagination) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	limit := p.Limit()
	return (total + limit - 1) / limit
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
