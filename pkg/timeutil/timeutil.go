// Package timeutil provides timezone-aware calendar helpers.
// All "day" arithmetic in the analytics subsystem goes through a Calendar
// so that local midnight is computed in one configured location.
// No external dependencies - uses only standard library.
package timeutil

import (
	"sync"
	"time"

	// Zone database for images without /usr/share/zoneinfo.
	_ "time/tzdata"
)

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the frozen time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ═══════════════════════════════════════════════════════════════════════════
// Calendar
// ═══════════════════════════════════════════════════════════════════════════

// Calendar binds a location and a clock.
type Calendar struct {
	loc   *time.Location
	clock Clock
}

// NewCalendar creates a calendar. Nil arguments fall back to UTC and the system clock.
func NewCalendar(loc *time.Location, clock Clock) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return Calendar{loc: loc, clock: clock}
}

// UTC returns a calendar in UTC on the system clock.
func UTC() Calendar {
	return NewCalendar(time.UTC, SystemClock{})
}

// Location returns the calendar location.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Now returns the current time in the calendar location.
func (c Calendar) Now() time.Time {
	if c.clock == nil {
		return time.Now().In(c.Location())
	}
	return c.clock.Now().In(c.Location())
}

// In converts t to the calendar location.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.Location())
}

// Date creates midnight of the given date in the calendar location.
func (c Calendar) Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, c.Location())
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	l := c.In(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, c.Location())
}

// Today returns local midnight of the current day.
func (c Calendar) Today() time.Time {
	return c.StartOfDay(c.Now())
}

// StartOfMonth returns local midnight of the first day of t's month.
func (c Calendar) StartOfMonth(t time.Time) time.Time {
	l := c.In(t)
	return time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, c.Location())
}

// AddDays shifts a local midnight by n calendar days.
func (c Calendar) AddDays(t time.Time, n int) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b (negative if b is earlier).
// Counted on dates, not durations, so DST transitions do not shift the result.
func (c Calendar) DaysBetween(a, b time.Time) int {
	la, lb := c.In(a), c.In(b)
	da := time.Date(la.Year(), la.Month(), la.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(lb.Year(), lb.Month(), lb.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// IsSameDay checks if two times fall on the same local day.
func (c Calendar) IsSameDay(a, b time.Time) bool {
	return c.DaysBetween(a, b) == 0
}

// ═══════════════════════════════════════════════════════════════════════════
// Formatting
// ═══════════════════════════════════════════════════════════════════════════

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// FormatDay formats t as a local date string.
func (c Calendar) FormatDay(t time.Time) string {
	return c.In(t).Format(FormatDate)
}

// ParseDay parses a YYYY-MM-DD string as local midnight.
func (c Calendar) ParseDay(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, c.Location())
}

// LoadLocation resolves an IANA zone name, falling back to UTC on empty input.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
