package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{
			name:  "midday UTC",
			input: time.Date(2025, 3, 15, 13, 45, 12, 0, time.UTC),
			want:  time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "already midnight",
			input: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "non-UTC zone normalizes to the UTC date",
			input: time.Date(2025, 3, 15, 22, 0, 0, 0, loc),
			want:  time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(StartOfDay(tt.input)))
		})
	}
}

func TestAddDays(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), AddDays(start, 30))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), AddDays(start, 0))
	// Month rollover
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), AddDays(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 30))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("not-a-date")
	assert.Error(t, err)
}
