// Package engine bundles recurrence expansion, conflict checks and date
// helpers behind one value. It adds no behavior of its own beyond choosing
// the location used for day boundaries.
package engine

import (
	"slices"
	"time"

	"github.com/dukerupert/tempo/internal/conflict"
	"github.com/dukerupert/tempo/internal/datecalc"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/recurrence"
)

type Engine struct {
	loc *time.Location
}

func New(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

func (e *Engine) Occurrences(ev model.TimeEvent, r model.DateRange) []model.TimeOccurrence {
	return recurrence.Occurrences(ev, r)
}

// MultipleOccurrences expands every event over r and returns the flattened
// list ordered by start time.
func (e *Engine) MultipleOccurrences(events []model.TimeEvent, r model.DateRange) []model.TimeOccurrence {
	var all []model.TimeOccurrence
	for _, ev := range events {
		all = append(all, recurrence.Occurrences(ev, r)...)
	}
	slices.SortStableFunc(all, func(a, b model.TimeOccurrence) int {
		return a.StartsAt.Compare(b.StartsAt)
	})
	return all
}

func (e *Engine) NextOccurrence(ev model.TimeEvent, after time.Time) *time.Time {
	return recurrence.NextOccurrence(ev, after)
}

// Instances expands events over r into concrete single-instance copies, one
// per occurrence, for consumers that work on flat event lists.
func (e *Engine) Instances(events []model.TimeEvent, r model.DateRange) []model.TimeEvent {
	byID := make(map[string]model.TimeEvent, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	var out []model.TimeEvent
	for _, occ := range e.MultipleOccurrences(events, r) {
		ev := byID[occ.EventID]
		end := occ.EndsAt
		ev.StartsAt = occ.StartsAt
		ev.EndsAt = &end
		ev.Recurrence = nil
		out = append(out, ev)
	}
	return out
}

func (e *Engine) CheckConflicts(candidate model.TimeEvent, existing []model.TimeEvent) []model.ConflictResult {
	return conflict.Check(candidate, existing)
}

func (e *Engine) FindFreeSlots(r model.DateRange, events []model.TimeEvent, minMinutes int) []model.TimeSlot {
	return conflict.FindFreeSlots(r, events, minMinutes)
}

func (e *Engine) TotalBusyTime(r model.DateRange, events []model.TimeEvent) int {
	return conflict.TotalBusyTime(r, events)
}

func (e *Engine) TotalFreeTime(r model.DateRange, events []model.TimeEvent) int {
	return conflict.TotalFreeTime(r, events)
}

// Day returns the bounds of the calendar day containing t in the engine's location.
func (e *Engine) Day(t time.Time) model.DateRange {
	return datecalc.DayBounds(t.In(e.loc))
}

func (e *Engine) RangesOverlap(a, b model.DateRange) bool {
	return datecalc.RangesOverlap(a, b)
}

func (e *Engine) CalculateOverlap(a, b model.DateRange) int {
	return datecalc.CalculateOverlap(a, b)
}

func (e *Engine) IsDateInRange(t time.Time, r model.DateRange) bool {
	return datecalc.IsDateInRange(t, r)
}

func (e *Engine) AddInterval(t time.Time, freq model.Frequency, interval int) time.Time {
	return datecalc.AddInterval(t, freq, interval)
}

func (e *Engine) IsSameDay(a, b time.Time) bool {
	return datecalc.IsSameDay(a.In(e.loc), b.In(e.loc))
}
