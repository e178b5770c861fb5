package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupingAndPeriod(t *testing.T) {
	for _, s := range []string{"day", "week", "month"} {
		_, err := ParseGrouping(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseGrouping("year")
	assert.ErrorIs(t, err, ErrInvalidGrouping)

	for _, s := range []string{"today", "last-7-days", "last-14-days", "last-30-days",
		"this-week", "this-month", "this-year", "custom"} {
		_, err := ParsePeriod(s)
		assert.NoError(t, err, s)
	}
	_, err = ParsePeriod("last-year")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestPeriodRange(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	// a Wednesday
	now := time.Date(2026, 8, 26, 15, 30, 0, 0, berlin)

	start, end, err := PeriodRange(PeriodToday, now, berlin, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, berlin), start)
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, berlin), end)

	start, end, err = PeriodRange(PeriodLast7Days, now, berlin, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, berlin), start)
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, berlin), end)

	start, end, err = PeriodRange(PeriodThisWeek, now, berlin, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, berlin), start)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, berlin), end)

	start, end, err = PeriodRange(PeriodThisMonth, now, berlin, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, berlin), start)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, berlin), end)
}

func TestPeriodRangeCustom(t *testing.T) {
	now := time.Now()

	_, _, err := PeriodRange(PeriodCustom, now, time.UTC, time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidRange)

	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, _, err = PeriodRange(PeriodCustom, now, time.UTC, from, until)
	assert.ErrorIs(t, err, ErrInvalidRange)

	start, end, err := PeriodRange(PeriodCustom, now, time.UTC, until, from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	// until is inclusive
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), end)
}

func TestBucketLabelsDay(t *testing.T) {
	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	labels := BucketLabels(GroupDay, start, end, time.UTC)
	assert.Equal(t, []string{"2026-08-24", "2026-08-25", "2026-08-26"}, labels)
}

func TestBucketLabelsDayAcrossDST(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	// DST starts 2026-03-29 in Europe/Berlin
	start := time.Date(2026, 3, 27, 0, 0, 0, 0, berlin)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, berlin)
	labels := BucketLabels(GroupDay, start, end, berlin)
	assert.Equal(t, []string{"2026-03-27", "2026-03-28", "2026-03-29", "2026-03-30", "2026-03-31"}, labels)
}

func TestBucketLabelsWeek(t *testing.T) {
	// mid-week start snaps to the containing Monday
	start := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC)
	labels := BucketLabels(GroupWeek, start, end, time.UTC)
	assert.Equal(t, []string{"2026-W35", "2026-W36", "2026-W37"}, labels)
}

func TestBucketLabelsMonth(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	labels := BucketLabels(GroupMonth, start, end, time.UTC)
	assert.Equal(t, []string{"2026-01", "2026-02", "2026-03"}, labels)
}
