// Package conflict detects overlaps between concrete event instances and
// measures free and busy time. It does not expand recurrence; callers pass
// already-materialized instances.
package conflict

import (
	"slices"
	"time"

	"github.com/dukerupert/tempo/internal/datecalc"
	"github.com/dukerupert/tempo/internal/model"
)

// Check returns one result per existing event that overlaps candidate.
// The candidate itself, completed events and cancelled events never conflict.
func Check(candidate model.TimeEvent, existing []model.TimeEvent) []model.ConflictResult {
	var results []model.ConflictResult
	cr := candidate.Range()

	for _, e := range existing {
		if e.ID != "" && e.ID == candidate.ID {
			continue
		}
		if e.Status == model.StatusCompleted || e.Status == model.StatusCancelled {
			continue
		}
		er := e.Range()
		if !datecalc.RangesOverlap(cr, er) {
			continue
		}
		results = append(results, model.ConflictResult{
			HasConflict:      true,
			ConflictingEvent: e,
			OverlapMinutes:   datecalc.CalculateOverlap(cr, er),
		})
	}

	return results
}

// FindFreeSlots sweeps r in start order and reports every gap of at least
// minMinutes between non-cancelled events.
func FindFreeSlots(r model.DateRange, events []model.TimeEvent, minMinutes int) []model.TimeSlot {
	busy := active(events)
	slices.SortStableFunc(busy, func(a, b model.TimeEvent) int {
		return a.StartsAt.Compare(b.StartsAt)
	})

	minGap := time.Duration(minMinutes) * time.Minute
	var slots []model.TimeSlot
	cursor := r.Start

	emit := func(end time.Time) {
		if end.Sub(cursor) >= minGap && end.After(cursor) {
			slots = append(slots, model.TimeSlot{
				Start:    cursor,
				End:      end,
				Duration: datecalc.Duration(cursor, end),
			})
		}
	}

	for _, e := range busy {
		start, end := e.StartsAt, e.End()
		if !end.After(cursor) {
			continue
		}
		if !start.Before(r.End) {
			break
		}
		if start.After(cursor) {
			emit(start)
		}
		if end.After(r.End) {
			end = r.End
		}
		cursor = end
	}
	emit(r.End)

	return slots
}

// TotalBusyTime sums each non-cancelled event's overlap with r. Overlapping
// events are counted once each; intervals are not merged.
func TotalBusyTime(r model.DateRange, events []model.TimeEvent) int {
	total := 0
	for _, e := range active(events) {
		total += datecalc.CalculateOverlap(e.Range(), r)
	}
	return total
}

// TotalFreeTime is the range length minus TotalBusyTime.
func TotalFreeTime(r model.DateRange, events []model.TimeEvent) int {
	return datecalc.RangeDuration(r) - TotalBusyTime(r, events)
}

func active(events []model.TimeEvent) []model.TimeEvent {
	out := make([]model.TimeEvent, 0, len(events))
	for _, e := range events {
		if e.Status != model.StatusCancelled {
			out = append(out, e)
		}
	}
	return out
}
