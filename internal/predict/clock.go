// Package predict converts daily sentiment breakdowns into directional
// market calls and guards the historical record with lock and audit
// semantics.
package predict

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sector-pulse/pulse-cli/internal/model"
)

// Clock abstracts wall-clock time so lock decisions are testable.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock returns a constant time, used in tests and backfills.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// MarketCalendar decides when a date's prediction must lock. The session
// is a fixed UTC window on weekdays; no holiday feed is consulted.
type MarketCalendar struct {
	openHour, openMin   int
	closeHour, closeMin int
}

// NewMarketCalendar parses "HH:MM" UTC session bounds.
func NewMarketCalendar(openUTC, closeUTC string) (MarketCalendar, error) {
	var cal MarketCalendar
	open, err := time.Parse("15:04", openUTC)
	if err != nil {
		return cal, eris.Wrapf(err, "predict: parse market open %q", openUTC)
	}
	close_, err := time.Parse("15:04", closeUTC)
	if err != nil {
		return cal, eris.Wrapf(err, "predict: parse market close %q", closeUTC)
	}
	cal.openHour, cal.openMin = open.Hour(), open.Minute()
	cal.closeHour, cal.closeMin = close_.Hour(), close_.Minute()
	return cal, nil
}

// DefaultMarketCalendar is the regular US session, 14:30-21:00 UTC.
func DefaultMarketCalendar() MarketCalendar {
	return MarketCalendar{openHour: 14, openMin: 30, closeHour: 21}
}

// openAt returns the session open instant for a given day.
func (c MarketCalendar) openAt(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.openHour, c.openMin, 0, 0, time.UTC)
}

// IsOpen reports whether the market session is in progress at now.
func (c MarketCalendar) IsOpen(now time.Time) bool {
	now = now.UTC()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	open := c.openAt(now)
	close_ := time.Date(now.Year(), now.Month(), now.Day(), c.closeHour, c.closeMin, 0, 0, time.UTC)
	return !now.Before(open) && now.Before(close_)
}

// ShouldLock reports whether the prediction for the given date must be
// locked as of now. Past dates always lock. The current date locks once
// its session has opened; weekend dates never open, so a same-day weekend
// write stays unlocked until the date is in the past.
func (c MarketCalendar) ShouldLock(date string, now time.Time) (bool, error) {
	day, err := model.ParseDay(date)
	if err != nil {
		return false, eris.Wrapf(err, "predict: parse date %s", date)
	}
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case day.Before(today):
		return true, nil
	case day.After(today):
		return false, nil
	}
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}
	return !now.Before(c.openAt(day)), nil
}
