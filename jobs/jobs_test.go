package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryDue(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	// Monday 2026-08-31 06:30 in Berlin is 04:30 UTC
	now := time.Date(2026, 8, 31, 4, 30, 0, 0, time.UTC)
	assert.True(t, summaryDue(now, berlin))
	assert.False(t, summaryDue(now, time.UTC))
	// already Monday afternoon in Auckland
	assert.False(t, summaryDue(now, auckland))

	// Monday 06:15 local Auckland time
	now = time.Date(2026, 8, 30, 18, 15, 0, 0, time.UTC)
	assert.True(t, summaryDue(now, auckland))

	// right weekday, wrong hour
	now = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	assert.False(t, summaryDue(now, berlin))

	// right hour, wrong weekday
	now = time.Date(2026, 9, 1, 4, 30, 0, 0, time.UTC)
	assert.False(t, summaryDue(now, berlin))
}
