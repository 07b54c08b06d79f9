package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

type failingCalendar struct{}

func (failingCalendar) IsHoliday(time.Time, string) (bool, error) {
	return false, errors.New("calendar offline")
}

type panickingCalendar struct{}

func (panickingCalendar) IsHoliday(time.Time, string) (bool, error) {
	panic("boom")
}

func TestFederalCalendar(t *testing.T) {
	c := NewFederalCalendar()

	ok, err := c.IsHoliday(day(2025, time.July, 4), "")
	require.NoError(t, err)
	assert.True(t, ok)

	// Thanksgiving 2025
	ok, err = c.IsHoliday(day(2025, time.November, 27), "WA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsHoliday(day(2025, time.August, 13), "CA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateHolidayOnlyForThatState(t *testing.T) {
	c := NewFederalCalendar()

	ok, err := c.IsHoliday(day(2027, time.March, 31), "CA")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsHoliday(day(2027, time.March, 31), "WA")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckerFallsBackToFixedDates(t *testing.T) {
	for _, primary := range []Calendar{nil, failingCalendar{}, panickingCalendar{}} {
		c := NewChecker(primary, zerolog.Nop())
		assert.True(t, c.IsHoliday(day(2031, time.December, 25), "CA"))
		assert.True(t, c.IsHoliday(day(2031, time.January, 1), ""))
		assert.False(t, c.IsHoliday(day(2031, time.November, 27), ""))
	}
}

func TestNilCheckerUsesFixedDates(t *testing.T) {
	var c *Checker
	assert.True(t, c.IsHoliday(day(2026, time.July, 4), ""))
}

func TestUpcoming(t *testing.T) {
	got := Upcoming("puget", day(2026, time.July, 1), 3)
	require.Len(t, got, 3)
	assert.Equal(t, "2026-07-04", got[0].Date)
	assert.Equal(t, "Bloody Thursday", got[1].Name)
	assert.Equal(t, "2026-07-28", got[2].Date)
}

func TestUpcomingWrapsIntoNextYear(t *testing.T) {
	got := Upcoming("NORCAL", day(2026, time.December, 30), 0)
	require.Len(t, got, DefaultUpcomingLimit)
	assert.Equal(t, "2026-12-31", got[0].Date)
	assert.Equal(t, "2027-01-01", got[1].Date)
	assert.Equal(t, "2027-03-31", got[2].Date)
}

func TestUpcomingUnknownAndEmptyZone(t *testing.T) {
	assert.Empty(t, Upcoming("", day(2026, time.January, 2), 4))
	assert.Equal(t,
		Upcoming("SOCAL", day(2026, time.January, 2), 4),
		Upcoming("GULF", day(2026, time.January, 2), 4))
}
