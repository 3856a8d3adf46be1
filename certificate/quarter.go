package certificate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Quarter returns the calendar quarter of t as "Q<n>-<year>", e.g. "Q1-2025".
func Quarter(t time.Time) string {
	return fmt.Sprintf("Q%d-%d", quarterOf(t.Month()), t.Year())
}

func quarterOf(month time.Month) int {
	return (int(month)-1)/3 + 1
}

// ParseQuarter splits "Q3-2025" into 3 and 2025.
func ParseQuarter(quarter string) (int, int, error) {
	prefix, yearPart, ok := strings.Cut(quarter, "-")
	if !ok || len(prefix) != 2 || prefix[0] != 'Q' {
		return 0, 0, fmt.Errorf("invalid quarter %q", quarter)
	}
	q, err := strconv.Atoi(prefix[1:])
	if err != nil || q < 1 || q > 4 {
		return 0, 0, fmt.Errorf("invalid quarter %q", quarter)
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 1 {
		return 0, 0, fmt.Errorf("invalid quarter year %q", quarter)
	}
	return q, year, nil
}

// QuarterDueDate is the proof-of-life deadline for a quarter: the 15th of its
// second month.
func QuarterDueDate(quarter, year int) time.Time {
	month := time.Month((quarter-1)*3 + 2)
	return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
}
