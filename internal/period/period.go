// Package period derives reporting-month keys.
//
// A month key is "{year}-{zero-based month}" computed from a time shifted back
// by GraceOffset, so activity during the first day of a calendar month still
// counts toward the previous reporting period. Leaderboards and quota reports
// key on this exact format.
package period

import (
	"fmt"
	"time"
)

// GraceOffset is subtracted from the wall clock before the month is extracted.
const GraceOffset = 24 * time.Hour

// MonthKey returns the key of the reporting month containing t.
func MonthKey(t time.Time) string {
	shifted := t.UTC().Add(-GraceOffset)
	return CalendarKey(shifted.Year(), shifted.Month())
}

// CalendarKey formats a calendar month without any grace shift.
func CalendarKey(year int, month time.Month) string {
	return fmt.Sprintf("%d-%d", year, int(month)-1)
}
