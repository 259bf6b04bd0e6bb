package utils

import (
	"strings"
	"time"
)

const (
	DefaultTimezone   = "America/New_York"
	DefaultDaysBehind = 30
	DefaultDaysAhead  = 30
)

// DateTimeLayouts are tried in order by ParseDateTime.
var DateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",

	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",

	"January 2, 2006 3:04 PM",
	"January 2 2006 3:04 PM",
	"January 2, 2006 3:04PM",
	"January 2 2006 3:04PM",
	"January 2, 2006",
	"January 2 2006",

	"Jan 2, 2006 3:04 PM",
	"Jan 2 2006 3:04 PM",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan 2",

	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05",
}

var dateOnlyLayouts = []string{
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"1/2/2006",
	"Jan 2",
}

var clockLayouts = []string{"3:04PM", "3PM", "15:04"}

// ParseDateTime tries every layout in DateTimeLayouts (or the ones given)
// and returns a naive UTC wall clock. Zoned inputs are converted to UTC first.
func ParseDateTime(s string, layouts ...string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if len(layouts) == 0 {
		layouts = DateTimeLayouts
	}
	// AM/PM markers only parse in upper case, month and day names are case insensitive
	upper := strings.ToUpper(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return ToNaiveUTC(t), true
		}
	}
	return time.Time{}, false
}

// ParseDateTimeParts combines a free-text date ("January 15, 2025",
// "1/15/2025", "Jan 15") with a free-text time ("2:00 PM", "2pm", "14:00").
// A date without a year takes the current year, rolling over to the next
// year when that lands more than 30 days in the past. A missing or
// unparseable time defaults to noon.
func ParseDateTimeParts(dateStr, timeStr string) (time.Time, bool) {
	dateStr = strings.ToUpper(strings.TrimSpace(dateStr))
	var date time.Time
	var found bool
	for _, layout := range dateOnlyLayouts {
		t, err := time.Parse(layout, dateStr)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "2006") {
			now := NaiveNow()
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if t.Before(now.AddDate(0, 0, -30)) {
				t = t.AddDate(1, 0, 0)
			}
		}
		date, found = t, true
		break
	}
	if !found {
		return time.Time{}, false
	}

	if hour, minute, ok := ParseClock(timeStr); ok {
		return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC), true
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC), true
}

// ParseClock reads "2:00 PM", "2pm" or "14:00".
func ParseClock(s string) (hour, minute int, ok bool) {
	clock := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "")
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return c.Hour(), c.Minute(), true
		}
	}
	return 0, 0, false
}

// AtClock sets the wall clock of a date, leaving it unchanged when the
// clock text cannot be read.
func AtClock(date time.Time, clock string) time.Time {
	hour, minute, ok := ParseClock(clock)
	if !ok {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
}

// RollForward moves a date that lost its year into the future: when it is
// already in the past it is pushed to the next year.
func RollForward(t time.Time) time.Time {
	now := NaiveNow()
	t = time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	if t.Before(now) {
		t = t.AddDate(1, 0, 0)
	}
	return t
}
