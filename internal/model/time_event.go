package model

import (
	"errors"
	"fmt"
	"time"
)

type EntityType string

const (
	EntityTask      EntityType = "task"
	EntityHabit     EntityType = "habit"
	EntityChallenge EntityType = "challenge"
	EntityReminder  EntityType = "reminder"
	EntityExternal  EntityType = "external"
	EntityRecovery  EntityType = "recovery"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityTask, EntityHabit, EntityChallenge, EntityReminder, EntityExternal, EntityRecovery:
		return true
	}
	return false
}

type EventStatus string

const (
	StatusScheduled  EventStatus = "scheduled"
	StatusInProgress EventStatus = "in_progress"
	StatusCompleted  EventStatus = "completed"
	StatusCancelled  EventStatus = "cancelled"
	StatusMissed     EventStatus = "missed"
)

func (s EventStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

// Priority ordinals. 4 is the highest.
const (
	PriorityNone    = 0
	PriorityLow     = 1
	PriorityNormal  = 2
	PriorityHigh    = 3
	PriorityHighest = 4
)

var ErrInvalidEvent = errors.New("invalid time event")

// TimeEvent is the canonical schedulable unit. Without a recurrence it denotes
// a single instant; with one, StartsAt is the anchor of the series.
type TimeEvent struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	EntityType  EntityType        `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       string            `json:"color"`
	Priority    int               `json:"priority"`
	StartsAt    time.Time         `json:"starts_at"`
	EndsAt      *time.Time        `json:"ends_at"`
	Duration    int               `json:"duration"`
	IsAllDay    bool              `json:"is_all_day"`
	Timezone    string            `json:"timezone,omitempty"`
	Recurrence  *RecurrenceConfig `json:"recurrence"`
	Status      EventStatus       `json:"status"`
	CompletedAt *time.Time        `json:"completed_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Length is the span of one occurrence. Duration wins; EndsAt is the fallback.
func (e TimeEvent) Length() time.Duration {
	if e.Duration > 0 {
		return time.Duration(e.Duration) * time.Minute
	}
	if e.EndsAt != nil && e.EndsAt.After(e.StartsAt) {
		return e.EndsAt.Sub(e.StartsAt)
	}
	return 0
}

// End returns EndsAt when set, otherwise StartsAt plus Duration.
func (e TimeEvent) End() time.Time {
	if e.EndsAt != nil {
		return *e.EndsAt
	}
	return e.StartsAt.Add(time.Duration(e.Duration) * time.Minute)
}

func (e TimeEvent) Range() DateRange {
	return DateRange{Start: e.StartsAt, End: e.End()}
}

// IsRecurring reports whether the event expands into more than one occurrence.
func (e TimeEvent) IsRecurring() bool {
	return e.Recurrence != nil && e.Recurrence.Frequency != FrequencyOnce
}

// Location resolves the event's timezone, falling back to the location
// StartsAt already carries.
func (e TimeEvent) Location() *time.Location {
	if e.Timezone != "" {
		if loc, err := time.LoadLocation(e.Timezone); err == nil {
			return loc
		}
	}
	return e.StartsAt.Location()
}

// Validate checks the fields a caller-supplied event must carry before it is stored.
func (e TimeEvent) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	if !e.EntityType.Valid() {
		return fmt.Errorf("%w: unknown entity_type %q", ErrInvalidEvent, e.EntityType)
	}
	if e.StartsAt.IsZero() {
		return fmt.Errorf("%w: starts_at is required", ErrInvalidEvent)
	}
	if e.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidEvent)
	}
	if e.EndsAt != nil && e.EndsAt.Before(e.StartsAt) {
		return fmt.Errorf("%w: ends_at is before starts_at", ErrInvalidEvent)
	}
	if e.Status != "" && !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, e.Status)
	}
	if e.Recurrence != nil {
		if err := e.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DateRange is a closed interval; both ends are inclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EventPatch carries a partial update. Nil pointers leave the field untouched;
// the Clear flags null out optional fields.
type EventPatch struct {
	Title            *string           `json:"title,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Color            *string           `json:"color,omitempty"`
	Priority         *int              `json:"priority,omitempty"`
	StartsAt         *time.Time        `json:"starts_at,omitempty"`
	EndsAt           *time.Time        `json:"ends_at,omitempty"`
	ClearEndsAt      bool              `json:"clear_ends_at,omitempty"`
	Duration         *int              `json:"duration,omitempty"`
	IsAllDay         *bool             `json:"is_all_day,omitempty"`
	Timezone         *string           `json:"timezone,omitempty"`
	Recurrence       *RecurrenceConfig `json:"recurrence,omitempty"`
	ClearRecurrence  bool              `json:"clear_recurrence,omitempty"`
	Status           *EventStatus      `json:"status,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	ClearCompletedAt bool              `json:"clear_completed_at,omitempty"`
}

// Apply returns a copy of e with the patch applied.
func (p EventPatch) Apply(e TimeEvent) TimeEvent {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.Priority != nil {
		e.Priority = *p.Priority
	}
	if p.StartsAt != nil {
		e.StartsAt = *p.StartsAt
	}
	if p.ClearEndsAt {
		e.EndsAt = nil
	} else if p.EndsAt != nil {
		t := *p.EndsAt
		e.EndsAt = &t
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.IsAllDay != nil {
		e.IsAllDay = *p.IsAllDay
	}
	if p.Timezone != nil {
		e.Timezone = *p.Timezone
	}
	if p.ClearRecurrence {
		e.Recurrence = nil
	} else if p.Recurrence != nil {
		rc := p.Recurrence.Clone()
		e.Recurrence = &rc
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.ClearCompletedAt {
		e.CompletedAt = nil
	} else if p.CompletedAt != nil {
		t := *p.CompletedAt
		e.CompletedAt = &t
	}
	return e
}

// ReplaceWith builds a patch that overwrites every mutable field of an
// existing event with the values of e.
func ReplaceWith(e TimeEvent) EventPatch {
	p := EventPatch{
		Title:       &e.Title,
		Description: &e.Description,
		Color:       &e.Color,
		Priority:    &e.Priority,
		StartsAt:    &e.StartsAt,
		Duration:    &e.Duration,
		IsAllDay:    &e.IsAllDay,
		Timezone:    &e.Timezone,
		Status:      &e.Status,
	}
	if e.EndsAt != nil {
		p.EndsAt = e.EndsAt
	} else {
		p.ClearEndsAt = true
	}
	if e.Recurrence != nil {
		p.Recurrence = e.Recurrence
	} else {
		p.ClearRecurrence = true
	}
	if e.CompletedAt != nil {
		p.CompletedAt = e.CompletedAt
	} else {
		p.ClearCompletedAt = true
	}
	return p
}
