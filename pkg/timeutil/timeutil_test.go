package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var almaty = time.FixedZone("UTC+5", 5*60*60)

func TestCalendar_StartOfDay(t *testing.T) {
	cal := NewCalendar(almaty, nil)

	// 21:30 UTC is already the next local day in UTC+5.
	instant := time.Date(2024, 3, 10, 21, 30, 0, 0, time.UTC)
	got := cal.StartOfDay(instant)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, almaty), got)
	assert.True(t, got.Equal(time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC)))
}

func TestCalendar_DaysBetween(t *testing.T) {
	cal := NewCalendar(almaty, nil)

	tests := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same day", cal.Date(2024, 1, 1).Add(time.Hour), cal.Date(2024, 1, 1).Add(23 * time.Hour), 0},
		{"next day", cal.Date(2024, 1, 1).Add(23 * time.Hour), cal.Date(2024, 1, 2).Add(time.Minute), 1},
		{"across month", cal.Date(2024, 1, 31), cal.Date(2024, 2, 2), 2},
		{"backwards", cal.Date(2024, 1, 5), cal.Date(2024, 1, 1), -4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.DaysBetween(tt.a, tt.b))
		})
	}
}

func TestCalendar_StartOfMonthAndAddDays(t *testing.T) {
	cal := NewCalendar(almaty, nil)
	d := cal.Date(2024, 2, 28)

	assert.Equal(t, cal.Date(2024, 2, 1), cal.StartOfMonth(d.Add(5*time.Hour)))
	assert.Equal(t, cal.Date(2024, 3, 1), cal.AddDays(d, 2)) // leap year
	assert.Equal(t, cal.Date(2024, 2, 22), cal.AddDays(d, -6))
}

func TestCalendar_FormatAndParseDay(t *testing.T) {
	cal := NewCalendar(almaty, nil)

	assert.Equal(t, "2024-03-11", cal.FormatDay(time.Date(2024, 3, 10, 21, 30, 0, 0, time.UTC)))

	parsed, err := cal.ParseDay("2024-03-11")
	require.NoError(t, err)
	assert.Equal(t, cal.Date(2024, 3, 11), parsed)

	_, err = cal.ParseDay("11.03.2024")
	assert.Error(t, err)
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	cal := NewCalendar(time.UTC, clock)

	assert.Equal(t, start, cal.Now())

	clock.Advance(36 * time.Hour)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), cal.Today())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}
