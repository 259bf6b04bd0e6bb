package utils

import "time"

// timeNow is a variable that can be overridden in tests
var timeNow = time.Now

// Now returns the current time, can be mocked in tests
func Now() time.Time {
	return timeNow()
}

// MockTime sets a fixed time for testing and returns a function to restore the original
func MockTime(mockTime time.Time) func() {
	original := timeNow
	timeNow = func() time.Time { return mockTime }
	return func() { timeNow = original }
}

// NaiveNow is the current UTC wall clock with the zone dropped.
func NaiveNow() time.Time {
	return Naive(Now().UTC())
}

// Naive keeps the wall clock of t and pins it to UTC, so that events read
// from sources with and without zone information compare consistently.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ToNaiveUTC converts an instant to UTC before dropping its zone.
func ToNaiveUTC(t time.Time) time.Time {
	return Naive(t.UTC())
}

// ISOFormat renders a naive timestamp as YYYY-MM-DDTHH:MM:SS, appending
// microseconds only when they are non zero.
func ISOFormat(t time.Time) string {
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000")
	}
	return t.Format("2006-01-02T15:04:05")
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
