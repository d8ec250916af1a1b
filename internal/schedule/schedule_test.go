package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/dukerupert/tempo/internal/database"
	"github.com/dukerupert/tempo/internal/engine"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/normalize"
	"github.com/dukerupert/tempo/internal/registry"
)

// Monday, 2 February 2026.
var monday = time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	svc   *Service
	db    *database.DB
	clock *time.Time
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	return setupIn(t, time.UTC, monday)
}

// setupIn builds a service whose engine and normalizer work in loc, with the
// clock stopped at now.
func setupIn(t *testing.T, loc *time.Location, now time.Time) *testEnv {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := now
	nowFn := func() time.Time { return clock }

	policy := normalize.DefaultPolicy()
	policy.Location = loc
	norm := normalize.New(policy, normalize.WithClock(nowFn))

	svc := New(registry.New(db, logger), engine.New(loc), norm, logger)
	svc.now = nowFn
	return &testEnv{svc: svc, db: db, clock: &clock}
}

func at(day, hour, min int) time.Time {
	return time.Date(2026, 2, day, hour, min, 0, 0, time.UTC)
}

func task(id string, start time.Time, minutes int) model.Task {
	return model.Task{ID: id, Name: "Task " + id, StartTime: &start, Duration: &minutes}
}

func TestScheduleTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	first, err := env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 30))
	if err != nil {
		t.Fatalf("schedule task: %v", err)
	}
	if first == nil || first.EntityID != "t1" {
		t.Fatalf("event = %+v, want event for t1", first)
	}

	moved, err := env.svc.ScheduleTask(ctx, "user-1", task("t1", at(4, 14, 0), 45))
	if err != nil {
		t.Fatalf("reschedule task: %v", err)
	}
	if moved.ID != first.ID {
		t.Errorf("id = %q, want %q (event updated in place)", moved.ID, first.ID)
	}
	if !moved.StartsAt.Equal(at(4, 14, 0)) || moved.Duration != 45 {
		t.Errorf("moved = %v for %d min, want 14:00 on the 4th for 45", moved.StartsAt, moved.Duration)
	}

	events, err := env.svc.Events(ctx, "user-1", nil)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}

	gone, err := env.svc.ScheduleTask(ctx, "user-1", model.Task{ID: "t1", Name: "Task t1"})
	if err != nil {
		t.Fatalf("unschedule via task: %v", err)
	}
	if gone != nil {
		t.Errorf("event = %+v, want nil for unscheduled task", gone)
	}
	if _, err := env.svc.Event(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestScheduled(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	if ok, err := env.svc.Scheduled(ctx, "user-1", model.EntityTask, "t1"); err != nil || ok {
		t.Fatalf("Scheduled before scheduling = %v, %v; want false", ok, err)
	}
	env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 30))
	if ok, err := env.svc.Scheduled(ctx, "user-1", model.EntityTask, "t1"); err != nil || !ok {
		t.Errorf("Scheduled after scheduling = %v, %v; want true", ok, err)
	}
	if ok, _ := env.svc.Scheduled(ctx, "user-2", model.EntityTask, "t1"); ok {
		t.Error("another user's task should not count")
	}
}

func TestScheduleTaskInvalid(t *testing.T) {
	env := setup(t)
	_, err := env.svc.ScheduleTask(context.Background(), "user-1", model.Task{ID: "t1", ScheduledDate: "tomorrow"})
	if !errors.Is(err, normalize.ErrInvalidTask) {
		t.Errorf("error = %v, want ErrInvalidTask", err)
	}
}

func TestScheduleHabitKeepsAnchor(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	habit := model.Habit{ID: "h1", Name: "Stretch", Frequency: "daily"}
	first, err := env.svc.ScheduleHabit(ctx, "user-1", habit)
	if err != nil {
		t.Fatalf("schedule habit: %v", err)
	}
	if !first.StartsAt.Equal(at(2, 9, 0)) {
		t.Errorf("anchor = %v, want 09:00 on the 2nd", first.StartsAt)
	}

	*env.clock = at(5, 12, 0)
	habit.Name = "Stretch more"
	habit.Frequency = "weekly"
	habit.TargetDays = []int{1, 3}

	updated, err := env.svc.ScheduleHabit(ctx, "user-1", habit)
	if err != nil {
		t.Fatalf("reschedule habit: %v", err)
	}
	if updated.ID != first.ID {
		t.Errorf("id = %q, want %q", updated.ID, first.ID)
	}
	if !updated.StartsAt.Equal(first.StartsAt) {
		t.Errorf("anchor = %v, want unchanged %v", updated.StartsAt, first.StartsAt)
	}
	if updated.Title != "Stretch more" || updated.Recurrence.Frequency != model.FrequencyWeekly {
		t.Errorf("updated = %+v, want new title and weekly recurrence", updated)
	}
}

func TestHabitOccurrencesMondayWednesdayFriday(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	habit := model.Habit{ID: "h1", Name: "Gym", Frequency: "weekly", TargetDays: []int{1, 3, 5}}
	if _, err := env.svc.ScheduleHabit(ctx, "user-1", habit); err != nil {
		t.Fatalf("schedule habit: %v", err)
	}

	r := model.DateRange{Start: at(2, 0, 0), End: at(15, 23, 59)}
	occs, err := env.svc.Occurrences(ctx, "user-1", r)
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	if len(occs) != 6 {
		t.Fatalf("got %d occurrences, want 6", len(occs))
	}
	for _, o := range occs {
		switch o.StartsAt.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
		default:
			t.Errorf("occurrence on %s", o.StartsAt.Weekday())
		}
		if o.Status != model.OccurrencePending {
			t.Errorf("status = %s, want pending", o.Status)
		}
	}
}

func TestHabitOccurrencesOutsideUTC(t *testing.T) {
	ctx := context.Background()
	sydney, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	// 08:00 Monday in Sydney is still Sunday in UTC.
	env := setupIn(t, sydney, time.Date(2026, 2, 2, 8, 0, 0, 0, sydney))

	habit := model.Habit{ID: "h1", Name: "Gym", Frequency: "weekly", TargetDays: []int{1, 3, 5}}
	e, err := env.svc.ScheduleHabit(ctx, "user-1", habit)
	if err != nil {
		t.Fatalf("schedule habit: %v", err)
	}

	stored, err := env.svc.Event(ctx, e.ID)
	if err != nil {
		t.Fatalf("fetch event: %v", err)
	}
	if stored.Timezone != "Australia/Sydney" {
		t.Errorf("timezone = %q, want Australia/Sydney", stored.Timezone)
	}

	r := model.DateRange{
		Start: time.Date(2026, 2, 2, 0, 0, 0, 0, sydney),
		End:   time.Date(2026, 2, 15, 23, 59, 0, 0, sydney),
	}
	occs, err := env.svc.Occurrences(ctx, "user-1", r)
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	if len(occs) != 6 {
		t.Fatalf("got %d occurrences, want 6", len(occs))
	}
	for _, o := range occs {
		local := o.StartsAt.In(sydney)
		switch local.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
		default:
			t.Errorf("occurrence on %s in Sydney", local.Weekday())
		}
		if local.Hour() != 9 {
			t.Errorf("occurrence at %s, want 09:00 Sydney", local.Format("15:04"))
		}
	}

	wednesday := time.Date(2026, 2, 4, 18, 0, 0, 0, sydney)
	done, err := env.svc.ToggleHabitCompletion(ctx, e.ID, wednesday)
	if err != nil {
		t.Fatalf("toggle on Wednesday: %v", err)
	}
	if want := time.Date(2026, 2, 4, 9, 0, 0, 0, sydney); !done.StartsAt.Equal(want) {
		t.Errorf("starts_at = %v, want %v", done.StartsAt, want)
	}

	tuesday := time.Date(2026, 2, 3, 18, 0, 0, 0, sydney)
	if _, err := env.svc.ToggleHabitCompletion(ctx, e.ID, tuesday); !errors.Is(err, ErrNotDue) {
		t.Errorf("toggle on Tuesday err = %v, want ErrNotDue", err)
	}
}

func TestToggleHabitCompletion(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	habit := model.Habit{ID: "h1", Name: "Gym", Frequency: "weekly", TargetDays: []int{1, 3, 5}}
	e, err := env.svc.ScheduleHabit(ctx, "user-1", habit)
	if err != nil {
		t.Fatalf("schedule habit: %v", err)
	}

	wednesday := at(4, 18, 0)
	done, err := env.svc.ToggleHabitCompletion(ctx, e.ID, wednesday)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if done.Status != model.OccurrenceCompleted || done.CompletedAt == nil {
		t.Errorf("occurrence = %+v, want completed", done)
	}
	if !done.StartsAt.Equal(at(4, 9, 0)) {
		t.Errorf("starts_at = %v, want 09:00 on Wednesday", done.StartsAt)
	}

	r := model.DateRange{Start: at(2, 0, 0), End: at(8, 23, 59)}
	occs, err := env.svc.Occurrences(ctx, "user-1", r)
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occs))
	}
	if occs[1].Status != model.OccurrenceCompleted || occs[1].ID != done.ID {
		t.Errorf("wednesday = %+v, want stored completion overlaid", occs[1])
	}
	if occs[0].Status != model.OccurrencePending || occs[2].Status != model.OccurrencePending {
		t.Error("other days should stay pending")
	}

	undone, err := env.svc.ToggleHabitCompletion(ctx, e.ID, wednesday)
	if err != nil {
		t.Fatalf("toggle again: %v", err)
	}
	if undone.Status != model.OccurrencePending || undone.CompletedAt != nil {
		t.Errorf("occurrence = %+v, want pending without completed_at", undone)
	}
	if undone.ID != done.ID {
		t.Errorf("id = %q, want %q (same stored row)", undone.ID, done.ID)
	}
}

func TestToggleHabitCompletionErrors(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	habit := model.Habit{ID: "h1", Name: "Gym", Frequency: "weekly", TargetDays: []int{1, 3, 5}}
	e, _ := env.svc.ScheduleHabit(ctx, "user-1", habit)

	if _, err := env.svc.ToggleHabitCompletion(ctx, e.ID, at(3, 12, 0)); !errors.Is(err, ErrNotDue) {
		t.Errorf("tuesday: error = %v, want ErrNotDue", err)
	}

	tk, _ := env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 30))
	if _, err := env.svc.ToggleHabitCompletion(ctx, tk.ID, at(3, 9, 0)); !errors.Is(err, ErrNotHabit) {
		t.Errorf("task: error = %v, want ErrNotHabit", err)
	}

	if _, err := env.svc.ToggleHabitCompletion(ctx, "missing", at(3, 9, 0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: error = %v, want ErrNotFound", err)
	}
}

func TestToggleCustomHabitAppearsInOccurrences(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	e, err := env.svc.ScheduleHabit(ctx, "user-1", model.Habit{ID: "h1", Name: "Journal", Frequency: "custom"})
	if err != nil {
		t.Fatalf("schedule habit: %v", err)
	}
	if _, err := env.svc.ToggleHabitCompletion(ctx, e.ID, at(3, 20, 0)); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	occs, err := env.svc.Occurrences(ctx, "user-1", model.DateRange{Start: at(2, 0, 0), End: at(8, 0, 0)})
	if err != nil {
		t.Fatalf("occurrences: %v", err)
	}
	if len(occs) != 1 || !occs[0].StartsAt.Equal(at(3, 9, 0)) || occs[0].Status != model.OccurrenceCompleted {
		t.Errorf("occurrences = %+v, want the stored completion at 09:00 on the 3rd", occs)
	}
}

func TestCheckPlacementOverlappingTasks(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	if _, err := env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 30)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	end := at(3, 9, 45)
	candidate := model.TimeEvent{UserID: "user-1", EntityType: model.EntityTask, StartsAt: at(3, 9, 15), EndsAt: &end, Duration: 30}
	results, err := env.svc.CheckPlacement(ctx, "user-1", candidate)
	if err != nil {
		t.Fatalf("check placement: %v", err)
	}
	if len(results) != 1 || results[0].OverlapMinutes != 15 {
		t.Errorf("results = %+v, want one 15-minute overlap", results)
	}
}

func TestCheckPlacementAgainstRecurringSeries(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	standup := model.TimeEvent{
		UserID:     "user-1",
		EntityType: model.EntityReminder,
		Title:      "Standup",
		StartsAt:   at(2, 10, 0),
		Duration:   30,
		Recurrence: &model.RecurrenceConfig{Frequency: model.FrequencyDaily, Interval: 1},
	}
	if _, err := env.svc.CreateEvent(ctx, standup); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Starts on Friday before the standup and runs into it.
	candidate := model.TimeEvent{UserID: "user-1", EntityType: model.EntityTask, StartsAt: at(6, 9, 45), Duration: 30}
	results, err := env.svc.CheckPlacement(ctx, "user-1", candidate)
	if err != nil {
		t.Fatalf("check placement: %v", err)
	}
	if len(results) != 1 || results[0].OverlapMinutes != 15 {
		t.Fatalf("results = %+v, want one 15-minute overlap", results)
	}
	if !results[0].ConflictingEvent.StartsAt.Equal(at(6, 10, 0)) {
		t.Errorf("conflict at %v, want Friday's instance", results[0].ConflictingEvent.StartsAt)
	}

	// Starts inside Thursday's instance.
	candidate.StartsAt = at(5, 10, 20)
	results, _ = env.svc.CheckPlacement(ctx, "user-1", candidate)
	if len(results) != 1 || results[0].OverlapMinutes != 10 {
		t.Errorf("results = %+v, want one 10-minute overlap", results)
	}
}

func TestFreeSlotsAndBusyTime(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 60))
	env.svc.ScheduleTask(ctx, "user-1", task("t2", at(3, 13, 0), 90))

	r := model.DateRange{Start: at(3, 8, 0), End: at(3, 17, 0)}
	slots, err := env.svc.FreeSlots(ctx, "user-1", r, 60)
	if err != nil {
		t.Fatalf("free slots: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3: %+v", len(slots), slots)
	}
	if slots[1].Duration != 180 {
		t.Errorf("midday slot = %d min, want 180", slots[1].Duration)
	}

	busy, free, err := env.svc.BusyTime(ctx, "user-1", r)
	if err != nil {
		t.Fatalf("busy time: %v", err)
	}
	if busy != 150 || free != 390 {
		t.Errorf("busy, free = %d, %d, want 150, 390", busy, free)
	}
}

func TestPlanBreaks(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	for i, id := range []string{"a", "b", "c", "d"} {
		if _, err := env.svc.ScheduleTask(ctx, "user-1", task(id, at(3, 9, 10*i), 10)); err != nil {
			t.Fatalf("schedule %s: %v", id, err)
		}
	}
	env.svc.ScheduleTask(ctx, "user-1", task("tomorrow", at(4, 9, 0), 60))

	breaks, err := env.svc.PlanBreaks(ctx, "user-1", at(3, 12, 0), nil)
	if err != nil {
		t.Fatalf("plan breaks: %v", err)
	}
	if len(breaks) != 1 {
		t.Fatalf("got %d breaks, want 1: %+v", len(breaks), breaks)
	}
	b := breaks[0]
	if b.BreakDuration != 5 || !b.AfterTaskEndsAt.Equal(at(3, 9, 30)) {
		t.Errorf("break = %+v, want 5 minutes at 09:30", b)
	}
	if b.Suggestion == "" {
		t.Error("break should carry a suggestion")
	}
}

func TestPlanBreaksImportantTask(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	tk := task("call", at(3, 9, 0), 10)
	tk.SubCategory = "urgent"
	env.svc.ScheduleTask(ctx, "user-1", tk)

	breaks, err := env.svc.PlanBreaks(ctx, "user-1", at(3, 9, 0), nil)
	if err != nil {
		t.Fatalf("plan breaks: %v", err)
	}
	if len(breaks) != 1 || breaks[0].BreakDuration != 5 {
		t.Errorf("breaks = %+v, want one 5-minute break after the urgent task", breaks)
	}
}

func TestPlanBreaksWithCallerTasks(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	env.svc.ScheduleTask(ctx, "user-1", task("call", at(3, 9, 0), 10))

	breaks, err := env.svc.PlanBreaks(ctx, "user-1", at(3, 9, 0), nil)
	if err != nil {
		t.Fatalf("plan breaks: %v", err)
	}
	if len(breaks) != 0 {
		t.Fatalf("breaks = %+v, want none for a short normal task", breaks)
	}

	// The task was raised to urgent after it was scheduled.
	current := task("call", at(3, 9, 0), 10)
	current.SubCategory = "urgent"
	breaks, err = env.svc.PlanBreaks(ctx, "user-1", at(3, 9, 0), []model.Task{current})
	if err != nil {
		t.Fatalf("plan breaks: %v", err)
	}
	if len(breaks) != 1 || breaks[0].BreakDuration != 5 || !breaks[0].AfterTaskEndsAt.Equal(at(3, 9, 10)) {
		t.Errorf("breaks = %+v, want one 5-minute break at 09:10", breaks)
	}

	// A list that leaves the task out marks nothing important.
	breaks, _ = env.svc.PlanBreaks(ctx, "user-1", at(3, 9, 0), []model.Task{})
	if len(breaks) != 0 {
		t.Errorf("breaks = %+v, want none when the task is not in the list", breaks)
	}
}

func TestUpdateEventAndStatus(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	e, _ := env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 30))

	color := "#ff0000"
	updated, err := env.svc.UpdateEvent(ctx, e.ID, model.EventPatch{Color: &color})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Color != color {
		t.Errorf("color = %q, want %q", updated.Color, color)
	}

	bad := -10
	if _, err := env.svc.UpdateEvent(ctx, e.ID, model.EventPatch{Duration: &bad}); !errors.Is(err, model.ErrInvalidEvent) {
		t.Errorf("error = %v, want ErrInvalidEvent", err)
	}
	if _, err := env.svc.UpdateEvent(ctx, "missing", model.EventPatch{Color: &color}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	done, err := env.svc.UpdateStatus(ctx, e.ID, model.StatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if done.Status != model.StatusCompleted || done.CompletedAt == nil {
		t.Errorf("event = %+v, want completed", done)
	}
	if _, err := env.svc.UpdateStatus(ctx, e.ID, "paused"); !errors.Is(err, model.ErrInvalidEvent) {
		t.Errorf("error = %v, want ErrInvalidEvent", err)
	}

	if err := env.svc.DeleteEvent(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.svc.DeleteEvent(ctx, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestNextOccurrence(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	e, _ := env.svc.ScheduleHabit(ctx, "user-1", model.Habit{ID: "h1", Frequency: "weekly", TargetDays: []int{1, 3, 5}})
	next, err := env.svc.NextOccurrence(ctx, e.ID, at(4, 10, 0))
	if err != nil {
		t.Fatalf("next occurrence: %v", err)
	}
	if next == nil || !next.Equal(at(6, 9, 0)) {
		t.Errorf("next = %v, want Friday 09:00", next)
	}
}

func TestSweepMissed(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	past, _ := env.svc.ScheduleTask(ctx, "user-1", task("past", at(2, 6, 0), 30))
	recent, _ := env.svc.ScheduleTask(ctx, "user-1", task("recent", at(2, 7, 40), 10))
	future, _ := env.svc.ScheduleTask(ctx, "user-1", task("future", at(2, 10, 0), 30))

	n, err := env.svc.SweepMissed(ctx, monday, 15*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("marked %d, want 1", n)
	}

	for _, tc := range []struct {
		id   string
		want model.EventStatus
	}{
		{past.ID, model.StatusMissed},
		{recent.ID, model.StatusScheduled},
		{future.ID, model.StatusScheduled},
	} {
		e, _ := env.svc.Event(ctx, tc.id)
		if e.Status != tc.want {
			t.Errorf("%s status = %s, want %s", e.EntityID, e.Status, tc.want)
		}
	}
}

func TestStoreFailureSurfacesErrStore(t *testing.T) {
	ctx := context.Background()
	env := setup(t)
	env.db.Close()

	if _, err := env.svc.Events(ctx, "user-1", nil); !errors.Is(err, ErrStore) {
		t.Errorf("events error = %v, want ErrStore", err)
	}
	if _, err := env.svc.Occurrences(ctx, "user-1", model.DateRange{Start: monday, End: monday}); !errors.Is(err, ErrStore) {
		t.Errorf("occurrences error = %v, want ErrStore", err)
	}
	if _, err := env.svc.ScheduleTask(ctx, "user-1", task("t1", at(3, 9, 0), 30)); !errors.Is(err, ErrStore) {
		t.Errorf("schedule error = %v, want ErrStore", err)
	}
}
