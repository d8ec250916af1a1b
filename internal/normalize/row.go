package normalize

import (
	"fmt"
	"time"

	"github.com/dukerupert/tempo/internal/model"
)

// Row is the storage shape of a time_events record.
type Row struct {
	ID          string
	UserID      string
	EntityType  string
	EntityID    string
	Title       string
	Description string
	Color       string
	Priority    int
	StartsAt    time.Time
	EndsAt      *time.Time
	Duration    int
	IsAllDay    bool
	Timezone    *string
	Recurrence  *string
	Status      string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventFromRow transcribes a row into a TimeEvent. Recurrence JSON that does
// not decode into a valid config is an error; callers quarantine the row.
func EventFromRow(r Row) (model.TimeEvent, error) {
	e := model.TimeEvent{
		ID:          r.ID,
		UserID:      r.UserID,
		EntityType:  model.EntityType(r.EntityType),
		EntityID:    r.EntityID,
		Title:       r.Title,
		Description: r.Description,
		Color:       r.Color,
		Priority:    r.Priority,
		StartsAt:    r.StartsAt,
		EndsAt:      r.EndsAt,
		Duration:    r.Duration,
		IsAllDay:    r.IsAllDay,
		Status:      model.EventStatus(r.Status),
		CompletedAt: r.CompletedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Timezone != nil {
		e.Timezone = *r.Timezone
	}
	if r.Recurrence != nil && *r.Recurrence != "" {
		cfg, err := model.DecodeRecurrence([]byte(*r.Recurrence))
		if err != nil {
			return model.TimeEvent{}, fmt.Errorf("event %s recurrence: %w", r.ID, err)
		}
		e.Recurrence = cfg
	}
	return e, nil
}

// RowFromEvent is the inverse of EventFromRow. Times are stored in UTC.
func RowFromEvent(e model.TimeEvent) (Row, error) {
	r := Row{
		ID:          e.ID,
		UserID:      e.UserID,
		EntityType:  string(e.EntityType),
		EntityID:    e.EntityID,
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
		Priority:    e.Priority,
		StartsAt:    e.StartsAt.UTC(),
		EndsAt:      utcPtr(e.EndsAt),
		Duration:    e.Duration,
		IsAllDay:    e.IsAllDay,
		Status:      string(e.Status),
		CompletedAt: utcPtr(e.CompletedAt),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
	if e.Timezone != "" {
		tz := e.Timezone
		r.Timezone = &tz
	}
	if e.Recurrence != nil {
		data, err := model.EncodeRecurrence(*e.Recurrence)
		if err != nil {
			return Row{}, fmt.Errorf("event %s recurrence: %w", e.ID, err)
		}
		s := string(data)
		r.Recurrence = &s
	}
	return r, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
