package generators

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

// UIDDomain qualifies event ids into calendar UIDs.
const UIDDomain = "gid-seminars.wnprc.wisc.edu"

// ICS writes an iCalendar file with one VEVENT per seminar.
func (g *Generator) ICS(ctx context.Context, path string) (Result, error) {
	events, err := g.events(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := write(path, []byte(g.Calendar(events).Serialize())); err != nil {
		return Result{}, err
	}
	g.logger().Infof("Generated ICS with %d events: %s", len(events), path)
	return Result{Path: path, Events: len(events)}, nil
}

// Calendar builds the calendar for an already filtered event list.
func (g *Generator) Calendar(events []v1.Event) *ics.Calendar {
	config := g.Settings.Calendar

	cal := ics.NewCalendar()
	cal.SetProductId(config.GetProdID())
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(config.GetName())
	cal.SetXWRCalDesc(config.Description)

	stamp := utils.Now().UTC()
	for _, e := range events {
		g.addEvent(cal, e, stamp, config.Reminder())
	}
	return cal
}

func (g *Generator) addEvent(cal *ics.Calendar, e v1.Event, stamp time.Time, reminder int) {
	event := cal.AddEvent(fmt.Sprintf("%s@%s", e.ID, UIDDomain))
	event.SetDtStampTime(stamp)
	event.SetStartAt(g.localize(e.Start, e.Timezone))
	event.SetEndAt(g.localize(e.EffectiveEnd(), e.Timezone))
	event.SetSummary(e.Title)
	event.SetDescription(Description(e))

	if e.Location != "" {
		event.SetLocation(e.Location)
	}
	if e.URL != "" {
		event.SetURL(e.URL)
	}
	if e.Category != "" {
		event.SetProperty(ics.ComponentPropertyCategories, e.Category)
	}

	if reminder > 0 {
		alarm := event.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", reminder))
		alarm.SetProperty(ics.ComponentPropertyDescription, "Reminder: "+e.Title)
	}
}

// localize anchors a naive time to the event's zone and returns the instant.
// Unknown zones are treated as UTC.
func (g *Generator) localize(t time.Time, zone string) time.Time {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		g.logger().Warnf("unknown timezone %q, using UTC", zone)
		loc = time.UTC
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc).UTC()
}

// Description appends the event links, source and access notes to the
// seminar's own description.
func Description(e v1.Event) string {
	var lines []string
	if e.Description != "" {
		lines = append(lines, e.Description)
	}
	lines = append(lines, "")
	if e.URL != "" {
		lines = append(lines, "Event URL: "+e.URL)
	}
	if e.RegistrationURL != "" {
		lines = append(lines, "Registration: "+e.RegistrationURL)
	}
	if e.RecordingURL != "" {
		lines = append(lines, "Recording: "+e.RecordingURL)
	}
	lines = append(lines, "", "Source: "+e.SourceID)
	if e.AccessRestriction != "" && e.AccessRestriction != v1.AccessPublic {
		lines = append(lines, "Access: "+string(e.AccessRestriction))
	}
	return strings.Join(lines, "\n")
}
