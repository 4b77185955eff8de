// Package datetime provides calendar-day utility functions for reporting
// dates.
package datetime

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
)

const (
	// DateLayout is the format expected in config files, query parameters and
	// command-line flags. It is also the output date format.
	DateLayout = constants.DateLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// Day truncates t to midnight UTC of its calendar day. The time of day and
// the location are discarded.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a DateLayout string into a calendar day.
func ParseDay(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid date %q, expected %s", date, DateLayout)
	}
	return t, nil
}

// FormatDay formats the calendar day of t using DateLayout.
func FormatDay(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// DayBefore returns true if first falls on a strictly earlier calendar day
// than second.
func DayBefore(first, second time.Time) bool {
	return Day(first).Before(Day(second))
}
