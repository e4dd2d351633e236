package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMissingRangesEmptyCache(t *testing.T) {
	ranges := MissingRanges(day("2025-09-01"), day("2025-09-05"), nil)
	require.Len(t, ranges, 1)
	assert.Equal(t, DateRange{Start: "2025-09-01", End: "2025-09-05"}, ranges[0])
}

func TestMissingRangesFullyCached(t *testing.T) {
	cached := map[string]bool{
		"2025-09-01": true, "2025-09-02": true, "2025-09-03": true,
	}
	assert.Empty(t, MissingRanges(day("2025-09-01"), day("2025-09-03"), cached))
}

func TestMissingRangesCoalescesGaps(t *testing.T) {
	// Cached: 1st, 4th, 5th, 9th. Missing: 2-3 and 6-8 and 10.
	cached := map[string]bool{
		"2025-09-01": true, "2025-09-04": true, "2025-09-05": true, "2025-09-09": true,
	}
	ranges := MissingRanges(day("2025-09-01"), day("2025-09-10"), cached)
	require.Len(t, ranges, 3)
	assert.Equal(t, DateRange{Start: "2025-09-02", End: "2025-09-03"}, ranges[0])
	assert.Equal(t, DateRange{Start: "2025-09-06", End: "2025-09-08"}, ranges[1])
	assert.Equal(t, DateRange{Start: "2025-09-10", End: "2025-09-10"}, ranges[2])
}

func TestMissingRangesDisjointFromCache(t *testing.T) {
	// Property: no date in the result may be cached, and every uncached
	// date in the span must be covered.
	cached := map[string]bool{
		"2025-09-02": true, "2025-09-05": true, "2025-09-06": true,
	}
	ranges := MissingRanges(day("2025-09-01"), day("2025-09-08"), cached)

	covered := make(map[string]bool)
	for _, r := range ranges {
		for d := day(r.Start); !d.After(day(r.End)); d = d.AddDate(0, 0, 1) {
			covered[d.Format("2006-01-02")] = true
		}
	}
	for d := day("2025-09-01"); !d.After(day("2025-09-08")); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		assert.Equal(t, !cached[key], covered[key], "date %s", key)
	}
}

func TestMissingFromDatesSkipsWeekends(t *testing.T) {
	// Only the supplied dates count as gaps; absent weekend dates are not
	// reported missing.
	expected := []string{"2025-09-04", "2025-09-05", "2025-09-08"} // Thu, Fri, Mon
	cached := map[string]bool{"2025-09-05": true}
	ranges := MissingFromDates(expected, cached)
	require.Len(t, ranges, 2)
	assert.Equal(t, "2025-09-04", ranges[0].Start)
	assert.Equal(t, "2025-09-08", ranges[1].Start)
}

func TestShouldFetchFullRange(t *testing.T) {
	missing := []DateRange{{Start: "2025-09-01", End: "2025-09-09"}} // 9 of 10 days
	assert.True(t, ShouldFetchFullRange(missing, 10))

	missing = []DateRange{{Start: "2025-09-01", End: "2025-09-08"}} // exactly 80%
	assert.False(t, ShouldFetchFullRange(missing, 10))

	assert.False(t, ShouldFetchFullRange(nil, 10))
	assert.False(t, ShouldFetchFullRange(missing, 0))
}

func TestChunks(t *testing.T) {
	ranges := []DateRange{{Start: "2025-09-01", End: "2025-09-10"}}
	chunks := Chunks(ranges, 3)
	require.Len(t, chunks, 4)
	assert.Equal(t, DateRange{Start: "2025-09-01", End: "2025-09-03"}, chunks[0])
	assert.Equal(t, DateRange{Start: "2025-09-10", End: "2025-09-10"}, chunks[3])

	// A range smaller than the chunk size stays intact.
	assert.Equal(t, ranges, Chunks(ranges, 30))
}

func TestDateRangeDays(t *testing.T) {
	assert.Equal(t, 1, DateRange{Start: "2025-09-01", End: "2025-09-01"}.Days())
	assert.Equal(t, 10, DateRange{Start: "2025-09-01", End: "2025-09-10"}.Days())
}
