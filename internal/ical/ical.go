// Package ical renders time events as an iCalendar feed.
//
// Timed events with a named zone are written as wall-clock times with a TZID
// parameter holding the IANA zone name; no VTIMEZONE blocks are emitted, so
// consumers resolve the name from their own zone database. Everything else
// is written in UTC.
//
// The exported RRULE matches the engine's expansion with two known gaps.
// A weekly series whose anchor falls on a weekday outside its day list keeps
// the anchor as its first instance in the engine, while RFC 5545 leaves that
// case undefined and some consumers drop it. A monthly series with a list of
// month days skips days a month lacks, where the engine may clamp the first
// listed day to the month's end.
package ical

import (
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/recurrence"
)

const (
	productID   = "-//tempo//time engine//EN"
	localFormat = "20060102T150405"
)

// iCalendar priorities run 1 (highest) to 9 (lowest); 0 means undefined.
var icsPriority = map[int]int{
	model.PriorityHighest: 1,
	model.PriorityHigh:    3,
	model.PriorityNormal:  5,
	model.PriorityLow:     7,
}

// Export serializes events into a VCALENDAR with one VEVENT per event.
// Recurring events carry an RRULE; custom recurrences are exported as their
// anchor instance only.
func Export(name string, events []model.TimeEvent, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, e := range events {
		addEvent(cal, e, now)
	}

	return cal.Serialize()
}

func addEvent(cal *ics.Calendar, e model.TimeEvent, now time.Time) {
	ev := cal.AddEvent(e.ID)
	ev.SetDtStampTime(now)
	ev.SetCreatedTime(e.CreatedAt)
	ev.SetModifiedAt(e.UpdatedAt)

	if e.IsAllDay {
		start := e.StartsAt.In(e.Location())
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
	} else if tz := zoneName(e); tz != "" {
		loc := e.Location()
		tzid := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{tz}}
		ev.SetProperty(ics.ComponentPropertyDtStart, e.StartsAt.In(loc).Format(localFormat), tzid)
		ev.SetProperty(ics.ComponentPropertyDtEnd, e.StartsAt.Add(e.Length()).In(loc).Format(localFormat), tzid)
	} else {
		ev.SetStartAt(e.StartsAt)
		ev.SetEndAt(e.StartsAt.Add(e.Length()))
	}

	ev.SetSummary(e.Title)
	if e.Description != "" {
		ev.SetDescription(e.Description)
	}
	if e.Color != "" {
		ev.SetColor(e.Color)
	}
	ev.SetProperty(ics.ComponentPropertyCategories, string(e.EntityType))
	ev.SetProperty(ics.ComponentPropertyStatus, status(e.Status))
	if p, ok := icsPriority[e.Priority]; ok {
		ev.SetProperty(ics.ComponentPropertyPriority, strconv.Itoa(p))
	}

	if e.Recurrence != nil {
		if rule, ok := recurrence.EventRRule(e); ok {
			ev.AddProperty(ics.ComponentPropertyRrule, rule)
		}
		ev.SetProperty(ics.ComponentPropertyComment, recurrence.Describe(*e.Recurrence))
	}
}

// zoneName returns the IANA name to put in TZID, or "" when the event is
// better written in UTC.
func zoneName(e model.TimeEvent) string {
	switch e.Timezone {
	case "", "UTC", "Local":
		return ""
	}
	if e.Location().String() != e.Timezone {
		return ""
	}
	return e.Timezone
}

func status(s model.EventStatus) string {
	if s == model.StatusCancelled {
		return "CANCELLED"
	}
	return "CONFIRMED"
}
