// Package normalize maps tasks, habits and stored rows onto the canonical
// TimeEvent.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/tempo/internal/model"
)

const (
	DefaultTaskDuration = 30
	HabitDuration       = 15
)

var (
	ErrInvalidTask  = errors.New("invalid task")
	ErrInvalidHabit = errors.New("invalid habit")
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour). A trailing ":SS" is accepted and ignored.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("parse time of day %q: want HH:MM", s)
}

// On returns day's calendar date at this time in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	day = day.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, loc)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Policy holds the defaults the normalizer applies.
type Policy struct {
	// HabitAnchor is when a new habit's series starts on the day it is created.
	HabitAnchor TimeOfDay
	// DefaultTaskTime applies to tasks that carry a date but no time.
	DefaultTaskTime TimeOfDay
	Location        *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		HabitAnchor:     TimeOfDay{Hour: 9},
		DefaultTaskTime: TimeOfDay{Hour: 9},
		Location:        time.Local,
	}
}

type Normalizer struct {
	policy Policy
	now    func() time.Time
	newID  func() string
}

type Option func(*Normalizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithIDs replaces the UUID generator.
func WithIDs(newID func() string) Option {
	return func(n *Normalizer) { n.newID = newID }
}

func New(policy Policy, opts ...Option) *Normalizer {
	if policy.Location == nil {
		policy.Location = time.Local
	}
	n := &Normalizer{
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Normalizer) Policy() Policy {
	return n.policy
}

// TaskToEvent converts a task into a TimeEvent. A task with neither a
// start time nor a scheduled date produces no event and no error.
func (n *Normalizer) TaskToEvent(task model.Task, userID string) (*model.TimeEvent, error) {
	if task.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidTask)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidTask)
	}

	start, ok, err := n.taskStart(task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	duration := DefaultTaskDuration
	switch {
	case task.Duration != nil && *task.Duration > 0:
		duration = *task.Duration
	case task.EstimatedTime > 0:
		duration = task.EstimatedTime
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	now := n.now()
	e := &model.TimeEvent{
		ID:          n.newID(),
		UserID:      userID,
		EntityType:  model.EntityTask,
		EntityID:    task.ID,
		Title:       task.Name,
		Description: task.Category,
		Priority:    task.Priority(),
		StartsAt:    start,
		EndsAt:      &end,
		Duration:    duration,
		Timezone:    n.timezone(),
		Status:      model.StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if task.IsRecurring {
		e.Recurrence = &model.RecurrenceConfig{
			Frequency: taskFrequency(task.RecurrenceInterval),
			Interval:  1,
		}
	}

	if task.IsCompleted {
		e.Status = model.StatusCompleted
		completed := now
		if task.LastCompletedAt != nil {
			completed = *task.LastCompletedAt
		}
		e.CompletedAt = &completed
	}

	return e, nil
}

func (n *Normalizer) taskStart(task model.Task) (time.Time, bool, error) {
	if task.StartTime != nil && !task.StartTime.IsZero() {
		return *task.StartTime, true, nil
	}
	if task.ScheduledDate == "" {
		return time.Time{}, false, nil
	}

	day, err := time.ParseInLocation("2006-01-02", task.ScheduledDate, n.policy.Location)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: scheduled_date %q: %v", ErrInvalidTask, task.ScheduledDate, err)
	}

	tod := n.policy.DefaultTaskTime
	if task.ScheduledTime != "" {
		tod, err = ParseTimeOfDay(task.ScheduledTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
	}
	return tod.On(day, n.policy.Location), true, nil
}

func taskFrequency(interval string) model.Frequency {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "daily":
		return model.FrequencyDaily
	case "weekly":
		return model.FrequencyWeekly
	case "bi-monthly", "bi-weekly", "biweekly":
		return model.FrequencyBiWeekly
	case "monthly":
		return model.FrequencyMonthly
	}
	return model.FrequencyDaily
}

// HabitToEvent converts a habit into a recurring TimeEvent anchored today at
// the policy's habit anchor time.
func (n *Normalizer) HabitToEvent(habit model.Habit, userID string) (model.TimeEvent, error) {
	if habit.ID == "" {
		return model.TimeEvent{}, fmt.Errorf("%w: id is required", ErrInvalidHabit)
	}
	if userID == "" {
		return model.TimeEvent{}, fmt.Errorf("%w: user id is required", ErrInvalidHabit)
	}
	for _, d := range habit.TargetDays {
		if d < 0 || d > 6 {
			return model.TimeEvent{}, fmt.Errorf("%w: target day %d out of range 0-6", ErrInvalidHabit, d)
		}
	}

	now := n.now()
	start := n.policy.HabitAnchor.On(now, n.policy.Location)
	end := start.Add(HabitDuration * time.Minute)

	return model.TimeEvent{
		ID:          n.newID(),
		UserID:      userID,
		EntityType:  model.EntityHabit,
		EntityID:    habit.ID,
		Title:       habit.Name,
		Description: habit.Description,
		Color:       habit.Color,
		Priority:    model.PriorityNormal,
		StartsAt:    start,
		EndsAt:      &end,
		Duration:    HabitDuration,
		Timezone:    n.timezone(),
		Recurrence:  habitRecurrence(habit),
		Status:      model.StatusScheduled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func habitRecurrence(h model.Habit) *model.RecurrenceConfig {
	days := model.RecurrenceConfig{DaysOfWeek: h.TargetDays}.SortedDaysOfWeek()
	if len(days) == 0 {
		days = nil
	}

	switch strings.ToLower(strings.TrimSpace(h.Frequency)) {
	case "weekly", "x-times-per-week":
		return &model.RecurrenceConfig{Frequency: model.FrequencyWeekly, Interval: 1, DaysOfWeek: days}
	case "custom":
		return &model.RecurrenceConfig{Frequency: model.FrequencyCustom, Interval: 1, DaysOfWeek: days}
	}
	return &model.RecurrenceConfig{Frequency: model.FrequencyDaily, Interval: 1}
}

// timezone records the policy zone on new events. Recurrence stepping
// reloads it by name, so an event must never fall back to UTC.
func (n *Normalizer) timezone() string {
	return n.policy.Location.String()
}
