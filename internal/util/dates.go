// Package util holds small date helpers shared across services.
package util

import (
	"fmt"
	"time"

	"github.com/epeers/vnmarket/internal/models"
)

// DateLayout is the canonical wire format for all date parameters.
const DateLayout = "2006-01-02"

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidateRange parses and checks a start/end pair: both well-formed,
// start <= end, and neither in the future relative to today.
func ValidateRange(start, end string, today time.Time) (time.Time, time.Time, error) {
	s, err := ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s", start, end)
	}
	// Compare as YYYY-MM-DD strings: parsed dates live at UTC midnight while
	// the clock runs in the market's zone (UTC+7), so instant comparison
	// would push "today" into the future east of UTC.
	todayStr := FormatDate(today)
	if start > todayStr || end > todayStr {
		return time.Time{}, time.Time{}, fmt.Errorf("date range %s..%s extends into the future", start, end)
	}
	return s, e, nil
}

// Truncate drops the time-of-day component.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsWeekday reports whether t falls Monday..Friday.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// EnumerateDates returns every calendar date in [start, end] inclusive.
func EnumerateDates(start, end time.Time) []string {
	var out []string
	for d := Truncate(start); !d.After(Truncate(end)); d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out
}

// ExpectedTradingDates returns the dates on which data is expected for an
// asset type within [start, end], clamped to today. Gold trades every
// calendar day; everything else only on weekdays.
func ExpectedTradingDates(at models.AssetType, start, end, today time.Time) []string {
	// Walk and clamp by calendar date, not instant; see ValidateRange.
	last := FormatDate(end)
	if todayStr := FormatDate(today); last > todayStr {
		last = todayStr
	}
	var out []string
	for d := Truncate(start); FormatDate(d) <= last; d = d.AddDate(0, 0, 1) {
		if at == models.AssetTypeGold || IsWeekday(d) {
			out = append(out, FormatDate(d))
		}
	}
	return out
}

// LatestFriday returns the most recent Friday at or before t.
func LatestFriday(t time.Time) time.Time {
	d := Truncate(t)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
