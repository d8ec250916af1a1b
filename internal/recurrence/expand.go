package recurrence

import (
	"fmt"
	"time"

	"github.com/dukerupert/tempo/internal/datecalc"
	"github.com/dukerupert/tempo/internal/model"
)

// MaxIterations bounds every expansion. Hitting it ends the expansion
// silently; a zero or negative interval would otherwise never terminate.
const MaxIterations = 1000

// Occurrences expands e into the occurrences whose start lies within r
// (both ends inclusive). Custom frequencies expand to nothing.
func Occurrences(e model.TimeEvent, r model.DateRange) []model.TimeOccurrence {
	if !e.IsRecurring() {
		if datecalc.IsDateInRange(e.StartsAt, r) {
			return []model.TimeOccurrence{occurrence(e, e.StartsAt)}
		}
		return nil
	}
	if e.Recurrence.Frequency == model.FrequencyCustom {
		// RRULE-style custom patterns are not expanded.
		return nil
	}

	cfg := e.Recurrence
	var results []model.TimeOccurrence
	count := 0

	iter := newIterator(e)
	for range MaxIterations {
		occStart := iter.next()

		if occStart.After(r.End) {
			break
		}
		if cfg.EndDate != nil && occStart.After(*cfg.EndDate) {
			break
		}
		if cfg.MaxOccurrences > 0 && count >= cfg.MaxOccurrences {
			break
		}
		count++

		if !occStart.Before(r.Start) {
			results = append(results, occurrence(e, occStart))
		}
	}

	return results
}

// NextOccurrence returns the first occurrence strictly after the given time,
// or nil when the series is exhausted, custom, or the iteration cap is hit.
func NextOccurrence(e model.TimeEvent, after time.Time) *time.Time {
	if !e.IsRecurring() {
		if e.StartsAt.After(after) {
			t := e.StartsAt
			return &t
		}
		return nil
	}
	if e.Recurrence.Frequency == model.FrequencyCustom {
		return nil
	}

	cfg := e.Recurrence
	count := 0
	iter := newIterator(e)
	for range MaxIterations {
		occStart := iter.next()

		if cfg.EndDate != nil && occStart.After(*cfg.EndDate) {
			return nil
		}
		if cfg.MaxOccurrences > 0 && count >= cfg.MaxOccurrences {
			return nil
		}
		count++

		if occStart.After(after) {
			return &occStart
		}
	}
	return nil
}

// OccurrenceID derives the identifier of a computed occurrence.
func OccurrenceID(eventID string, start time.Time) string {
	return fmt.Sprintf("%s_%d", eventID, start.UnixMilli())
}

func occurrence(e model.TimeEvent, start time.Time) model.TimeOccurrence {
	return model.TimeOccurrence{
		ID:        OccurrenceID(e.ID, start),
		EventID:   e.ID,
		UserID:    e.UserID,
		StartsAt:  start,
		EndsAt:    start.Add(e.Length()),
		Status:    model.OccurrencePending,
		CreatedAt: e.CreatedAt,
	}
}

type iterator struct {
	cfg         model.RecurrenceConfig
	anchor      time.Time
	current     time.Time
	daysOfWeek  []int
	daysOfMonth []int
	started     bool
}

func newIterator(e model.TimeEvent) *iterator {
	anchor := e.StartsAt.In(e.Location())
	return &iterator{
		cfg:         *e.Recurrence,
		anchor:      anchor,
		current:     anchor,
		daysOfWeek:  e.Recurrence.SortedDaysOfWeek(),
		daysOfMonth: e.Recurrence.SortedDaysOfMonth(),
	}
}

// next returns the anchor on the first call and a later step on every call after.
func (it *iterator) next() time.Time {
	if !it.started {
		it.started = true
		return it.current
	}
	it.current = it.advance()
	return it.current
}

func (it *iterator) advance() time.Time {
	switch it.cfg.Frequency {
	case model.FrequencyWeekly:
		if len(it.daysOfWeek) > 0 {
			return it.advanceWeeklyByDay()
		}
	case model.FrequencyMonthly:
		return it.advanceMonthly()
	case model.FrequencyYearly:
		next := datecalc.AddInterval(it.current, model.FrequencyYearly, it.cfg.Interval)
		return datecalc.SetDayOfMonth(next, it.anchor.Day())
	}
	return datecalc.AddInterval(it.current, it.cfg.Frequency, it.cfg.Interval)
}

// advanceWeeklyByDay moves to the next listed weekday later in the current
// Sunday-based week, or jumps Interval weeks ahead to the first listed weekday.
func (it *iterator) advanceWeeklyByDay() time.Time {
	wd := int(it.current.Weekday())
	for _, d := range it.daysOfWeek {
		if d > wd {
			return datecalc.SetDayOfWeek(it.current, time.Weekday(d))
		}
	}
	jumped := datecalc.AddInterval(it.current, model.FrequencyWeekly, it.cfg.Interval)
	return datecalc.SetDayOfWeek(jumped, time.Weekday(it.daysOfWeek[0]))
}

func (it *iterator) advanceMonthly() time.Time {
	if len(it.daysOfMonth) > 0 {
		day := it.current.Day()
		last := datecalc.DaysInMonth(it.current.Year(), it.current.Month())
		for _, d := range it.daysOfMonth {
			if d > day && d <= last {
				return datecalc.SetDayOfMonth(it.current, d)
			}
		}
		next := datecalc.AddInterval(it.current, model.FrequencyMonthly, it.cfg.Interval)
		return datecalc.SetDayOfMonth(next, it.daysOfMonth[0])
	}

	day := it.cfg.DayOfMonth
	if day == 0 {
		day = it.anchor.Day()
	}
	next := datecalc.AddInterval(it.current, model.FrequencyMonthly, it.cfg.Interval)
	return datecalc.SetDayOfMonth(next, day)
}
