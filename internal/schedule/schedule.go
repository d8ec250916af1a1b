// Package schedule is the scheduling core: it normalizes tasks and habits
// into time events, persists them through a registry, and answers
// occurrence, conflict, free-time and break-planning questions.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/tempo/internal/engine"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/normalize"
	"github.com/dukerupert/tempo/internal/recovery"
	"github.com/dukerupert/tempo/internal/registry"
)

var (
	ErrStore    = errors.New("event store unavailable")
	ErrNotFound = errors.New("event not found")
	ErrNotHabit = errors.New("event is not a habit")
	ErrNotDue   = errors.New("habit is not due on that day")
)

type Service struct {
	reg    registry.Registry
	eng    *engine.Engine
	norm   *normalize.Normalizer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func New(reg registry.Registry, eng *engine.Engine, norm *normalize.Normalizer, logger *slog.Logger) *Service {
	return &Service{
		reg:    reg,
		eng:    eng,
		norm:   norm,
		logger: logger.With("component", "schedule"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ScheduleTask creates or replaces the event for a task. A task without a
// schedule removes any event it had and returns nil.
func (s *Service) ScheduleTask(ctx context.Context, userID string, task model.Task) (*model.TimeEvent, error) {
	e, err := s.norm.TaskToEvent(task, userID)
	if err != nil {
		return nil, err
	}

	existing, ok := s.reg.FetchEventsByEntity(ctx, userID, model.EntityTask, task.ID)
	if !ok {
		return nil, ErrStore
	}

	if e == nil {
		if len(existing) > 0 && !s.reg.DeleteEventsByEntity(ctx, userID, model.EntityTask, task.ID) {
			return nil, ErrStore
		}
		return nil, nil
	}

	if len(existing) == 0 {
		return s.create(ctx, *e)
	}
	return s.replace(ctx, existing[0].ID, *e)
}

// ScheduleHabit creates or replaces the event for a habit. An existing
// habit event keeps its original anchor and status.
func (s *Service) ScheduleHabit(ctx context.Context, userID string, habit model.Habit) (*model.TimeEvent, error) {
	e, err := s.norm.HabitToEvent(habit, userID)
	if err != nil {
		return nil, err
	}

	existing, ok := s.reg.FetchEventsByEntity(ctx, userID, model.EntityHabit, habit.ID)
	if !ok {
		return nil, ErrStore
	}
	if len(existing) == 0 {
		return s.create(ctx, e)
	}

	prev := existing[0]
	e.StartsAt = prev.StartsAt
	end := e.StartsAt.Add(e.Length())
	e.EndsAt = &end
	e.Status = prev.Status
	e.CompletedAt = prev.CompletedAt
	return s.replace(ctx, prev.ID, e)
}

// Scheduled reports whether the entity already has an event.
func (s *Service) Scheduled(ctx context.Context, userID string, entityType model.EntityType, entityID string) (bool, error) {
	existing, ok := s.reg.FetchEventsByEntity(ctx, userID, entityType, entityID)
	if !ok {
		return false, ErrStore
	}
	return len(existing) > 0, nil
}

func (s *Service) Unschedule(ctx context.Context, userID string, entityType model.EntityType, entityID string) error {
	if !s.reg.DeleteEventsByEntity(ctx, userID, entityType, entityID) {
		return ErrStore
	}
	return nil
}

// CreateEvent stores a caller-built event, such as a challenge or reminder.
func (s *Service) CreateEvent(ctx context.Context, e model.TimeEvent) (*model.TimeEvent, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if e.Status == "" {
		e.Status = model.StatusScheduled
	}
	if e.Timezone == "" {
		e.Timezone = s.eng.Location().String()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, e)
}

func (s *Service) create(ctx context.Context, e model.TimeEvent) (*model.TimeEvent, error) {
	created := s.reg.CreateEvent(ctx, e)
	if created == nil {
		return nil, ErrStore
	}
	s.logger.InfoContext(ctx, "scheduled event", "event_id", created.ID, "entity_type", created.EntityType, "entity_id", created.EntityID)
	return created, nil
}

func (s *Service) replace(ctx context.Context, id string, e model.TimeEvent) (*model.TimeEvent, error) {
	if !s.reg.UpdateEvent(ctx, id, model.ReplaceWith(e)) {
		return nil, ErrStore
	}
	return s.Event(ctx, id)
}

// Events lists a user's events; a nil range lists all of them.
func (s *Service) Events(ctx context.Context, userID string, r *model.DateRange) ([]model.TimeEvent, error) {
	events, ok := s.reg.FetchEvents(ctx, userID, r)
	if !ok {
		return nil, ErrStore
	}
	return events, nil
}

func (s *Service) Event(ctx context.Context, id string) (*model.TimeEvent, error) {
	e, ok := s.reg.FetchEventByID(ctx, id)
	if !ok {
		return nil, ErrStore
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Service) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (*model.TimeEvent, error) {
	current, err := s.Event(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(*current).Validate(); err != nil {
		return nil, err
	}
	if !s.reg.UpdateEvent(ctx, id, patch) {
		return nil, ErrStore
	}
	return s.Event(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status model.EventStatus) (*model.TimeEvent, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", model.ErrInvalidEvent, status)
	}
	if _, err := s.Event(ctx, id); err != nil {
		return nil, err
	}
	if !s.reg.UpdateEventStatus(ctx, id, status, nil) {
		return nil, ErrStore
	}
	return s.Event(ctx, id)
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if _, err := s.Event(ctx, id); err != nil {
		return err
	}
	if !s.reg.DeleteEvent(ctx, id) {
		return ErrStore
	}
	return nil
}

// Occurrences expands the user's events over r and overlays stored habit
// completions onto the matching computed occurrences.
func (s *Service) Occurrences(ctx context.Context, userID string, r model.DateRange) ([]model.TimeOccurrence, error) {
	var (
		events []model.TimeEvent
		stored []model.TimeOccurrence
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var ok bool
		if events, ok = s.reg.FetchEvents(gctx, userID, &r); !ok {
			return ErrStore
		}
		return nil
	})
	g.Go(func() error {
		var ok bool
		if stored, ok = s.reg.FetchOccurrences(gctx, userID, r); !ok {
			return ErrStore
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	occs := s.eng.MultipleOccurrences(events, r)
	return overlay(occs, stored), nil
}

type occKey struct {
	eventID string
	start   int64
}

func overlay(computed, stored []model.TimeOccurrence) []model.TimeOccurrence {
	if len(stored) == 0 {
		return computed
	}

	byKey := make(map[occKey]model.TimeOccurrence, len(stored))
	for _, o := range stored {
		byKey[occKey{o.EventID, o.StartsAt.UnixMilli()}] = o
	}

	for i, o := range computed {
		k := occKey{o.EventID, o.StartsAt.UnixMilli()}
		if st, ok := byKey[k]; ok {
			computed[i].ID = st.ID
			computed[i].Status = st.Status
			computed[i].CompletedAt = st.CompletedAt
			delete(byKey, k)
		}
	}

	// Completions of custom habits have no computed counterpart.
	if len(byKey) > 0 {
		for _, o := range stored {
			if _, ok := byKey[occKey{o.EventID, o.StartsAt.UnixMilli()}]; ok {
				computed = append(computed, o)
			}
		}
		slices.SortStableFunc(computed, func(a, b model.TimeOccurrence) int {
			return a.StartsAt.Compare(b.StartsAt)
		})
	}
	return computed
}

// ToggleHabitCompletion marks the habit's occurrence on day completed, or
// flips an already stored occurrence between completed and pending.
func (s *Service) ToggleHabitCompletion(ctx context.Context, eventID string, day time.Time) (*model.TimeOccurrence, error) {
	e, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.EntityType != model.EntityHabit {
		return nil, ErrNotHabit
	}

	start, err := s.dueOn(*e, day)
	if err != nil {
		return nil, err
	}

	existing, ok := s.reg.FetchOccurrence(ctx, eventID, start)
	if !ok {
		return nil, ErrStore
	}

	now := s.now()
	if existing == nil {
		saved := s.reg.SaveOccurrence(ctx, model.TimeOccurrence{
			ID:          s.newID(),
			EventID:     e.ID,
			UserID:      e.UserID,
			StartsAt:    start,
			EndsAt:      start.Add(e.Length()),
			Status:      model.OccurrenceCompleted,
			CompletedAt: &now,
			CreatedAt:   now,
		})
		if saved == nil {
			return nil, ErrStore
		}
		return saved, nil
	}

	status, completedAt := model.OccurrenceCompleted, &now
	if existing.Status == model.OccurrenceCompleted {
		status, completedAt = model.OccurrencePending, nil
	}
	if !s.reg.UpdateOccurrenceStatus(ctx, existing.ID, status, completedAt) {
		return nil, ErrStore
	}
	updated, ok := s.reg.FetchOccurrence(ctx, eventID, start)
	if !ok || updated == nil {
		return nil, ErrStore
	}
	return updated, nil
}

// dueOn returns the start of the habit's occurrence on day. Custom habits
// are never expanded, so any day counts and the anchor's time of day is used.
func (s *Service) dueOn(e model.TimeEvent, day time.Time) (time.Time, error) {
	if e.Recurrence != nil && e.Recurrence.Frequency == model.FrequencyCustom {
		loc := e.Location()
		anchor := e.StartsAt.In(loc)
		d := day.In(loc)
		return time.Date(d.Year(), d.Month(), d.Day(), anchor.Hour(), anchor.Minute(), 0, 0, loc), nil
	}

	occs := s.eng.Occurrences(e, s.eng.Day(day))
	if len(occs) == 0 {
		return time.Time{}, ErrNotDue
	}
	return occs[0].StartsAt, nil
}

func (s *Service) NextOccurrence(ctx context.Context, eventID string, after time.Time) (*time.Time, error) {
	e, err := s.Event(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.eng.NextOccurrence(*e, after), nil
}

// instances returns every concrete event instance of the user that can touch r.
func (s *Service) instances(ctx context.Context, userID string, r model.DateRange) ([]model.TimeEvent, error) {
	events, ok := s.reg.FetchEvents(ctx, userID, &r)
	if !ok {
		return nil, ErrStore
	}

	// Single events already overlap r. Series are expanded from far enough
	// back to catch occurrences that start before r but run into it.
	var single, series []model.TimeEvent
	var lookback time.Duration
	for _, e := range events {
		if e.IsRecurring() {
			series = append(series, e)
			lookback = max(lookback, e.Length())
		} else {
			single = append(single, e)
		}
	}
	expand := model.DateRange{Start: r.Start.Add(-lookback), End: r.End}
	return append(single, s.eng.Instances(series, expand)...), nil
}

// CheckPlacement reports every existing instance the candidate would overlap.
func (s *Service) CheckPlacement(ctx context.Context, userID string, candidate model.TimeEvent) ([]model.ConflictResult, error) {
	if candidate.StartsAt.IsZero() {
		return nil, fmt.Errorf("%w: starts_at is required", model.ErrInvalidEvent)
	}
	existing, err := s.instances(ctx, userID, candidate.Range())
	if err != nil {
		return nil, err
	}
	return s.eng.CheckConflicts(candidate, existing), nil
}

func (s *Service) FreeSlots(ctx context.Context, userID string, r model.DateRange, minMinutes int) ([]model.TimeSlot, error) {
	existing, err := s.instances(ctx, userID, r)
	if err != nil {
		return nil, err
	}
	return s.eng.FindFreeSlots(r, existing, minMinutes), nil
}

// BusyTime returns the busy and free minutes in r.
func (s *Service) BusyTime(ctx context.Context, userID string, r model.DateRange) (busy, free int, err error) {
	existing, err := s.instances(ctx, userID, r)
	if err != nil {
		return 0, 0, err
	}
	return s.eng.TotalBusyTime(r, existing), s.eng.TotalFreeTime(r, existing), nil
}

// PlanBreaks plans recovery breaks across the tasks on day. When the caller
// hands over its current task list, a task counts as important if that list
// rates it high or above; otherwise the priority stored on each event decides.
func (s *Service) PlanBreaks(ctx context.Context, userID string, day time.Time, tasks []model.Task) ([]model.PlannedBreak, error) {
	r := s.eng.Day(day)
	existing, err := s.instances(ctx, userID, r)
	if err != nil {
		return nil, err
	}

	var onDay []model.TimeEvent
	for _, e := range existing {
		if s.eng.IsDateInRange(e.StartsAt, r) {
			onDay = append(onDay, e)
		}
	}

	important := recovery.ByPriority(model.PriorityHigh)
	if tasks != nil {
		important = recovery.ImportantTasks(tasks)
	}
	breaks := recovery.ComputeBlockBreaks(onDay, important)
	for i := range breaks {
		breaks[i].Suggestion = recovery.SuggestionForDuration(breaks[i].BreakDuration)
	}
	return breaks, nil
}

// SweepMissed marks single-instance events still scheduled more than grace
// after their end as missed, and returns how many it marked.
func (s *Service) SweepMissed(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	overdue, ok := s.reg.FetchOverdueEvents(ctx, now.Add(-grace))
	if !ok {
		return 0, ErrStore
	}

	marked := 0
	for _, e := range overdue {
		if s.reg.UpdateEventStatus(ctx, e.ID, model.StatusMissed, nil) {
			marked++
		}
	}
	if marked > 0 {
		s.logger.InfoContext(ctx, "marked events missed", "count", marked)
	}
	return marked, nil
}
