package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEODCutoffUTC(t *testing.T) {
	validUntil := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		offsetMinutes int
		want          time.Time
	}{
		// Midnight closing March 10th in UTC
		{"utc", 0, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)},
		// UTC+5:30: local midnight lands 18:30 UTC the same day
		{"ist", 330, time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)},
		// UTC-5: local midnight lands 05:00 UTC the next day
		{"est", -300, time.Date(2026, 3, 11, 5, 0, 0, 0, time.UTC)},
		// UTC+14: earliest timezone on earth
		{"lint", 840, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EODCutoffUTC(validUntil, tt.offsetMinutes)
			require.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestEODCutoffUTCMonthRollover(t *testing.T) {
	validUntil := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	got := EODCutoffUTC(validUntil, 0)
	require.True(t, got.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}
