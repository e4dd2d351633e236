// Package planner computes which date ranges still need fetching. It is pure
// date algebra with no I/O so the read-through services stay testable.
package planner

import (
	"time"

	"github.com/epeers/vnmarket/internal/util"
)

// DateRange is an inclusive [Start, End] span of YYYY-MM-DD dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Days returns the number of calendar days the range covers.
func (r DateRange) Days() int {
	s, err1 := util.ParseDate(r.Start)
	e, err2 := util.ParseDate(r.End)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// MissingRanges enumerates every calendar date in [start, end], removes the
// cached ones, and coalesces what is left into contiguous ranges.
func MissingRanges(start, end time.Time, cached map[string]bool) []DateRange {
	var missing []string
	for _, d := range util.EnumerateDates(start, end) {
		if !cached[d] {
			missing = append(missing, d)
		}
	}
	return Coalesce(missing)
}

// MissingFromDates is MissingRanges over an explicit, ascending date list,
// used when only expected trading dates should count as gaps.
func MissingFromDates(dates []string, cached map[string]bool) []DateRange {
	var missing []string
	for _, d := range dates {
		if !cached[d] {
			missing = append(missing, d)
		}
	}
	return Coalesce(missing)
}

// Coalesce folds an ascending list of dates into contiguous ranges. Dates one
// calendar day apart belong to the same range.
func Coalesce(dates []string) []DateRange {
	if len(dates) == 0 {
		return nil
	}

	var out []DateRange
	cur := DateRange{Start: dates[0], End: dates[0]}
	prev, _ := util.ParseDate(dates[0])
	for _, d := range dates[1:] {
		t, err := util.ParseDate(d)
		if err != nil {
			continue
		}
		if t.Sub(prev) == 24*time.Hour {
			cur.End = d
		} else {
			out = append(out, cur)
			cur = DateRange{Start: d, End: d}
		}
		prev = t
	}
	return append(out, cur)
}

// ShouldFetchFullRange reports whether the missing portion exceeds 80% of the
// requested span, in which case one full-range provider call beats many
// per-gap calls.
func ShouldFetchFullRange(missing []DateRange, totalDays int) bool {
	if totalDays <= 0 {
		return false
	}
	missingDays := 0
	for _, r := range missing {
		missingDays += r.Days()
	}
	return float64(missingDays)/float64(totalDays) > 0.8
}

// Chunks splits ranges into pieces of at most chunkDays calendar days, used
// by the background fetchers to keep individual provider calls small.
func Chunks(ranges []DateRange, chunkDays int) []DateRange {
	if chunkDays <= 0 {
		return ranges
	}
	var out []DateRange
	for _, r := range ranges {
		s, err1 := util.ParseDate(r.Start)
		e, err2 := util.ParseDate(r.End)
		if err1 != nil || err2 != nil {
			out = append(out, r)
			continue
		}
		for cur := s; !cur.After(e); cur = cur.AddDate(0, 0, chunkDays) {
			chunkEnd := cur.AddDate(0, 0, chunkDays-1)
			if chunkEnd.After(e) {
				chunkEnd = e
			}
			out = append(out, DateRange{Start: util.FormatDate(cur), End: util.FormatDate(chunkEnd)})
		}
	}
	return out
}
