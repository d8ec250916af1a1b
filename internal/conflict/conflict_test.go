package conflict

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dukerupert/tempo/internal/model"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 2, 5, hour, min, 0, 0, time.UTC)
}

func block(id string, start time.Time, minutes int, status model.EventStatus) model.TimeEvent {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return model.TimeEvent{
		ID:         id,
		UserID:     "user-1",
		EntityType: model.EntityTask,
		StartsAt:   start,
		EndsAt:     &end,
		Duration:   minutes,
		Status:     status,
	}
}

func day() model.DateRange {
	return model.DateRange{Start: at(8, 0), End: at(18, 0)}
}

func TestCheckTwoOverlappingTasks(t *testing.T) {
	a := block("a", at(9, 0), 30, model.StatusScheduled)
	b := block("b", at(9, 15), 30, model.StatusScheduled)

	results := Check(b, []model.TimeEvent{a})
	if len(results) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(results))
	}
	if !results[0].HasConflict {
		t.Error("HasConflict should be true")
	}
	if results[0].OverlapMinutes != 15 {
		t.Errorf("OverlapMinutes = %d, want 15", results[0].OverlapMinutes)
	}
	if results[0].ConflictingEvent.ID != "a" {
		t.Errorf("ConflictingEvent = %q, want a", results[0].ConflictingEvent.ID)
	}
}

func TestCheckSkipsSelfAndFinishedEvents(t *testing.T) {
	candidate := block("c", at(10, 0), 60, model.StatusScheduled)
	existing := []model.TimeEvent{
		block("c", at(10, 0), 60, model.StatusScheduled),
		block("done", at(10, 0), 60, model.StatusCompleted),
		block("gone", at(10, 0), 60, model.StatusCancelled),
		block("missed", at(10, 30), 60, model.StatusMissed),
	}

	results := Check(candidate, existing)
	if len(results) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(results))
	}
	if results[0].ConflictingEvent.ID != "missed" {
		t.Errorf("conflict with %q, want missed", results[0].ConflictingEvent.ID)
	}
	for _, r := range results {
		if s := r.ConflictingEvent.Status; s == model.StatusCompleted || s == model.StatusCancelled {
			t.Errorf("reported %s event as conflicting", s)
		}
	}
}

func TestCheckReportsEveryConflict(t *testing.T) {
	candidate := block("c", at(9, 0), 120, model.StatusScheduled)
	existing := []model.TimeEvent{
		block("x", at(8, 30), 60, model.StatusScheduled),
		block("y", at(10, 0), 30, model.StatusInProgress),
		block("z", at(11, 0), 30, model.StatusScheduled),
	}

	results := Check(candidate, existing)
	if len(results) != 2 {
		t.Fatalf("got %d conflicts, want 2", len(results))
	}
	if results[0].OverlapMinutes != 30 || results[1].OverlapMinutes != 30 {
		t.Errorf("overlaps = %d, %d, want 30, 30", results[0].OverlapMinutes, results[1].OverlapMinutes)
	}
}

func TestCheckTouchingIsNotAConflict(t *testing.T) {
	a := block("a", at(9, 0), 30, model.StatusScheduled)
	b := block("b", at(9, 30), 30, model.StatusScheduled)
	if results := Check(b, []model.TimeEvent{a}); len(results) != 0 {
		t.Errorf("got %d conflicts for touching events, want 0", len(results))
	}
}

func TestFindFreeSlots(t *testing.T) {
	events := []model.TimeEvent{
		block("late", at(14, 0), 60, model.StatusScheduled),
		block("early", at(9, 0), 60, model.StatusScheduled),
		block("short-gap", at(10, 10), 50, model.StatusScheduled),
		block("cancelled", at(12, 0), 60, model.StatusCancelled),
	}

	got := FindFreeSlots(day(), events, 30)
	want := []model.TimeSlot{
		{Start: at(8, 0), End: at(9, 0), Duration: 60},
		{Start: at(11, 0), End: at(14, 0), Duration: 180},
		{Start: at(15, 0), End: at(18, 0), Duration: 180},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
}

func TestFindFreeSlotsClipsEventsOutsideRange(t *testing.T) {
	events := []model.TimeEvent{
		block("overnight", at(6, 0), 150, model.StatusScheduled), // 06:00-08:30
		block("evening", at(17, 30), 120, model.StatusScheduled), // 17:30-19:30
		block("tomorrow", at(23, 0), 30, model.StatusScheduled),
	}

	got := FindFreeSlots(day(), events, 15)
	want := []model.TimeSlot{
		{Start: at(8, 30), End: at(17, 30), Duration: 540},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
}

func TestFindFreeSlotsOverlappingEvents(t *testing.T) {
	events := []model.TimeEvent{
		block("long", at(9, 0), 180, model.StatusScheduled), // 09:00-12:00
		block("inner", at(10, 0), 30, model.StatusScheduled),
	}

	got := FindFreeSlots(day(), events, 60)
	want := []model.TimeSlot{
		{Start: at(8, 0), End: at(9, 0), Duration: 60},
		{Start: at(12, 0), End: at(18, 0), Duration: 360},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("slots mismatch (-want +got):\n%s", diff)
	}
}

func TestFindFreeSlotsEmptyDay(t *testing.T) {
	got := FindFreeSlots(day(), nil, 30)
	if len(got) != 1 || got[0].Duration != 600 {
		t.Errorf("got %+v, want one 600-minute slot", got)
	}
}

func TestBusyAndFreeTime(t *testing.T) {
	events := []model.TimeEvent{
		block("a", at(9, 0), 60, model.StatusScheduled),
		block("b", at(13, 0), 90, model.StatusCompleted),
		block("c", at(15, 0), 60, model.StatusCancelled),
		block("d", at(17, 30), 60, model.StatusScheduled), // half outside
	}

	busy := TotalBusyTime(day(), events)
	if busy != 60+90+30 {
		t.Errorf("busy = %d, want 180", busy)
	}
	free := TotalFreeTime(day(), events)
	if free+busy != 600 {
		t.Errorf("free + busy = %d, want 600", free+busy)
	}
}

func TestBusyTimeDoubleCountsOverlaps(t *testing.T) {
	events := []model.TimeEvent{
		block("a", at(9, 0), 60, model.StatusScheduled),
		block("b", at(9, 30), 60, model.StatusScheduled),
	}
	if busy := TotalBusyTime(day(), events); busy != 120 {
		t.Errorf("busy = %d, want 120 (overlaps are not merged)", busy)
	}
}
