// Package calendar decides whether an arrival date is a holiday for
// surcharge purposes and lists the fixed-date labour holidays per port zone.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
	"github.com/rs/zerolog"
)

// Calendar answers holiday questions for a date, optionally narrowed to a US state.
type Calendar interface {
	IsHoliday(date time.Time, state string) (bool, error)
}

// FederalCalendar consults the US federal holiday set and, when a state is
// given, that state's additional holidays. Observed dates count as holidays.
type FederalCalendar struct {
	federal *cal.Calendar
	states  map[string]*cal.Calendar
}

// stateHolidays lists state-level public holidays beyond the federal set.
var stateHolidays = map[string][]*cal.Holiday{
	"CA": {
		{Name: "Lincoln's Birthday", Type: cal.ObservancePublic, Month: time.February, Day: 12, Func: cal.CalcDayOfMonth},
		{Name: "Cesar Chavez Day", Type: cal.ObservancePublic, Month: time.March, Day: 31, Func: cal.CalcDayOfMonth},
	},
	"WA": {},
	"OR": {},
}

// NewFederalCalendar builds the federal calendar plus the known state tables.
func NewFederalCalendar() *FederalCalendar {
	fed := &cal.Calendar{}
	fed.AddHoliday(us.Holidays...)

	states := make(map[string]*cal.Calendar, len(stateHolidays))
	for st, hs := range stateHolidays {
		c := &cal.Calendar{}
		c.AddHoliday(hs...)
		states[st] = c
	}
	return &FederalCalendar{federal: fed, states: states}
}

func (f *FederalCalendar) IsHoliday(date time.Time, state string) (bool, error) {
	if f == nil || f.federal == nil {
		return false, fmt.Errorf("federal calendar not configured")
	}
	if actual, observed, _ := f.federal.IsHoliday(date); actual || observed {
		return true, nil
	}
	st := strings.ToUpper(strings.TrimSpace(state))
	if st == "" {
		return false, nil
	}
	c, ok := f.states[st]
	if !ok {
		return false, nil
	}
	actual, observed, _ := c.IsHoliday(date)
	return actual || observed, nil
}

// FixedDateCalendar is the minimal fallback set: Jan 1, Jul 4, Dec 25 in any year.
type FixedDateCalendar struct{}

func (FixedDateCalendar) IsHoliday(date time.Time, _ string) (bool, error) {
	switch {
	case date.Month() == time.January && date.Day() == 1,
		date.Month() == time.July && date.Day() == 4,
		date.Month() == time.December && date.Day() == 25:
		return true, nil
	}
	return false, nil
}

// Checker wraps a primary calendar and degrades to the fixed-date set on any
// failure. It never returns an error.
type Checker struct {
	primary Calendar
	logger  zerolog.Logger
}

// NewChecker creates a checker; a nil primary means only the fixed set is used.
func NewChecker(primary Calendar, logger zerolog.Logger) *Checker {
	return &Checker{
		primary: primary,
		logger:  logger.With().Str("component", "holidays").Logger(),
	}
}

// DefaultChecker uses the federal+state calendar.
func DefaultChecker(logger zerolog.Logger) *Checker {
	return NewChecker(NewFederalCalendar(), logger)
}

// IsHoliday reports whether date is a holiday in state.
func (c *Checker) IsHoliday(date time.Time, state string) (is bool) {
	if c == nil || c.primary == nil {
		is, _ = FixedDateCalendar{}.IsHoliday(date, state)
		return is
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Interface("panic", r).Msg("holiday calendar failed, using fixed dates")
			is, _ = FixedDateCalendar{}.IsHoliday(date, state)
		}
	}()

	ok, err := c.primary.IsHoliday(date, state)
	if err != nil {
		c.logger.Warn().Err(err).Str("state", state).Msg("holiday calendar unavailable, using fixed dates")
		ok, _ = FixedDateCalendar{}.IsHoliday(date, state)
	}
	return ok
}
