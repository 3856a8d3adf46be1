package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuarter(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), "Q1-2025"},
		{time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC), "Q1-2025"},
		{time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "Q2-2025"},
		{time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC), "Q3-2025"},
		{time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), "Q4-2026"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Quarter(tt.date), tt.date.String())
	}
}

func TestParseQuarter(t *testing.T) {
	q, year, err := ParseQuarter("Q3-2025")
	require.NoError(t, err)
	require.Equal(t, 3, q)
	require.Equal(t, 2025, year)

	for _, invalid := range []string{"", "Q5-2025", "Q0-2025", "X1-2025", "Q1", "Q1-abc", "Q12-2025"} {
		_, _, err := ParseQuarter(invalid)
		require.Error(t, err, invalid)
	}
}

func TestQuarterDueDate(t *testing.T) {
	require.Equal(t, time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC), QuarterDueDate(1, 2025))
	require.Equal(t, time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC), QuarterDueDate(2, 2025))
	require.Equal(t, time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC), QuarterDueDate(3, 2025))
	require.Equal(t, time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC), QuarterDueDate(4, 2025))
}
