package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestYear(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want int
	}{
		{"last day of cycle", date(2025, time.September, 30), 2024},
		{"first day of cycle", date(2025, time.October, 1), 2025},
		{"january", date(2025, time.January, 15), 2024},
		{"december", date(2025, time.December, 31), 2025},
		{"leap day", date(2024, time.February, 29), 2023},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Year(tc.at))
		})
	}
}

func TestYearUsesLocation(t *testing.T) {
	// 2025-09-30 23:30 in UTC-5 is already October in UTC.
	loc := time.FixedZone("UTC-5", -5*60*60)
	local := time.Date(2025, time.September, 30, 23, 30, 0, 0, loc)
	assert.Equal(t, 2024, Year(local))
	assert.Equal(t, 2025, Year(local.UTC()))
}

func TestBounds(t *testing.T) {
	start, end := Bounds(2024)
	assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, 2024, Year(start))
	assert.Equal(t, 2024, Year(end.Add(-time.Nanosecond)))
	assert.Equal(t, 2025, Year(end))
}

func TestContainsAndYearsBetween(t *testing.T) {
	assert.True(t, Contains(2024, date(2025, time.March, 1)))
	assert.False(t, Contains(2025, date(2025, time.March, 1)))
	assert.Equal(t, 6, YearsBetween(2019, 2025))
	assert.Equal(t, -1, YearsBetween(2025, 2024))
}
