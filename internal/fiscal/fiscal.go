// Package fiscal maps dates onto the cooperative's October-to-September
// accounting year.
//
// A fiscal year is named after the calendar year in which it starts:
// fiscal year 2024 runs from 2024-10-01 through 2025-09-30.
package fiscal

import "time"

// StartMonth is the first month of a fiscal year.
const StartMonth = time.October

// Year returns the fiscal year containing t. The month is read in t's own
// location.
func Year(t time.Time) int {
	if t.Month() < StartMonth {
		return t.Year() - 1
	}
	return t.Year()
}

// Bounds returns the half-open interval [start, end) of the fiscal year in UTC.
func Bounds(year int) (time.Time, time.Time) {
	start := time.Date(year, StartMonth, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

// Contains reports whether t falls inside the given fiscal year.
func Contains(year int, t time.Time) bool {
	return Year(t) == year
}

// YearsBetween is the number of whole fiscal years from one year to another.
// It is negative when to precedes from.
func YearsBetween(from, to int) int {
	return to - from
}
