// Package registry is the persistence boundary for time events. Every
// operation reports failure through its return value and logs the cause;
// nothing here returns an error.
package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/tempo/internal/database"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/store"
)

// Registry fetches and mutates a user's time events and stored occurrences.
// Reads return ok=false on failure; a nil event with ok=true means not found.
// Mutations return false (or nil) on failure.
type Registry interface {
	FetchEvents(ctx context.Context, userID string, r *model.DateRange) ([]model.TimeEvent, bool)
	FetchEventByID(ctx context.Context, id string) (*model.TimeEvent, bool)
	FetchEventsByEntity(ctx context.Context, userID string, entityType model.EntityType, entityID string) ([]model.TimeEvent, bool)
	FetchOverdueEvents(ctx context.Context, cutoff time.Time) ([]model.TimeEvent, bool)
	CreateEvent(ctx context.Context, e model.TimeEvent) *model.TimeEvent
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch) bool
	UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, completedAt *time.Time) bool
	DeleteEvent(ctx context.Context, id string) bool
	DeleteEventsByEntity(ctx context.Context, userID string, entityType model.EntityType, entityID string) bool

	FetchOccurrences(ctx context.Context, userID string, r model.DateRange) ([]model.TimeOccurrence, bool)
	FetchOccurrence(ctx context.Context, eventID string, start time.Time) (*model.TimeOccurrence, bool)
	SaveOccurrence(ctx context.Context, o model.TimeOccurrence) *model.TimeOccurrence
	UpdateOccurrenceStatus(ctx context.Context, id string, status model.OccurrenceStatus, completedAt *time.Time) bool
}

// SQLRegistry backs Registry with the SQL stores.
type SQLRegistry struct {
	events      *store.EventStore
	occurrences *store.OccurrenceStore
	logger      *slog.Logger
	now         func() time.Time
}

var _ Registry = (*SQLRegistry)(nil)

func New(db *database.DB, logger *slog.Logger) *SQLRegistry {
	return &SQLRegistry{
		events:      store.NewEventStore(db),
		occurrences: store.NewOccurrenceStore(db),
		logger:      logger.With("component", "registry"),
		now:         time.Now,
	}
}

func (r *SQLRegistry) fail(ctx context.Context, op string, err error, attrs ...any) {
	r.logger.ErrorContext(ctx, "registry operation failed", append([]any{"op", op, "error", err}, attrs...)...)
}

func (r *SQLRegistry) quarantine(ctx context.Context, op string, bad []store.Quarantined) {
	for _, q := range bad {
		r.logger.WarnContext(ctx, "skipping malformed event", "op", op, "event_id", q.EventID, "error", q.Err)
	}
}

func (r *SQLRegistry) FetchEvents(ctx context.Context, userID string, dr *model.DateRange) ([]model.TimeEvent, bool) {
	events, bad, err := r.events.ListByUser(ctx, userID, dr)
	if err != nil {
		r.fail(ctx, "fetch_events", err, "user_id", userID)
		return nil, false
	}
	r.quarantine(ctx, "fetch_events", bad)
	return events, true
}

func (r *SQLRegistry) FetchEventByID(ctx context.Context, id string) (*model.TimeEvent, bool) {
	e, err := r.events.GetByID(ctx, id)
	if err != nil {
		r.fail(ctx, "fetch_event", err, "event_id", id)
		return nil, false
	}
	return e, true
}

func (r *SQLRegistry) FetchEventsByEntity(ctx context.Context, userID string, entityType model.EntityType, entityID string) ([]model.TimeEvent, bool) {
	events, bad, err := r.events.ListByEntity(ctx, userID, entityType, entityID)
	if err != nil {
		r.fail(ctx, "fetch_events_by_entity", err, "user_id", userID, "entity_type", entityType, "entity_id", entityID)
		return nil, false
	}
	r.quarantine(ctx, "fetch_events_by_entity", bad)
	return events, true
}

func (r *SQLRegistry) FetchOverdueEvents(ctx context.Context, cutoff time.Time) ([]model.TimeEvent, bool) {
	events, bad, err := r.events.ListOverdue(ctx, cutoff)
	if err != nil {
		r.fail(ctx, "fetch_overdue_events", err, "cutoff", cutoff)
		return nil, false
	}
	r.quarantine(ctx, "fetch_overdue_events", bad)
	return events, true
}

func (r *SQLRegistry) CreateEvent(ctx context.Context, e model.TimeEvent) *model.TimeEvent {
	created, err := r.events.Create(ctx, e)
	if err != nil {
		r.fail(ctx, "create_event", err, "event_id", e.ID, "user_id", e.UserID, "entity_type", e.EntityType, "entity_id", e.EntityID)
		return nil
	}
	return created
}

func (r *SQLRegistry) UpdateEvent(ctx context.Context, id string, patch model.EventPatch) bool {
	updated, err := r.events.Update(ctx, id, patch)
	if err != nil {
		r.fail(ctx, "update_event", err, "event_id", id)
		return false
	}
	if updated == nil {
		r.logger.WarnContext(ctx, "update of unknown event", "op", "update_event", "event_id", id)
		return false
	}
	return true
}

// UpdateEventStatus stamps completed_at with now when completing without an
// explicit time.
func (r *SQLRegistry) UpdateEventStatus(ctx context.Context, id string, status model.EventStatus, completedAt *time.Time) bool {
	at := r.now()
	if completedAt != nil {
		at = *completedAt
	}
	updated, err := r.events.UpdateStatus(ctx, id, status, at)
	if err != nil {
		r.fail(ctx, "update_event_status", err, "event_id", id, "status", status)
		return false
	}
	if updated == nil {
		r.logger.WarnContext(ctx, "status update of unknown event", "op", "update_event_status", "event_id", id)
		return false
	}
	return true
}

func (r *SQLRegistry) DeleteEvent(ctx context.Context, id string) bool {
	if err := r.events.Delete(ctx, id); err != nil {
		r.fail(ctx, "delete_event", err, "event_id", id)
		return false
	}
	return true
}

func (r *SQLRegistry) DeleteEventsByEntity(ctx context.Context, userID string, entityType model.EntityType, entityID string) bool {
	n, err := r.events.DeleteByEntity(ctx, userID, entityType, entityID)
	if err != nil {
		r.fail(ctx, "delete_events_by_entity", err, "user_id", userID, "entity_type", entityType, "entity_id", entityID)
		return false
	}
	r.logger.DebugContext(ctx, "deleted entity events", "user_id", userID, "entity_type", entityType, "entity_id", entityID, "count", n)
	return true
}

func (r *SQLRegistry) FetchOccurrences(ctx context.Context, userID string, dr model.DateRange) ([]model.TimeOccurrence, bool) {
	occs, err := r.occurrences.ListByUser(ctx, userID, dr)
	if err != nil {
		r.fail(ctx, "fetch_occurrences", err, "user_id", userID)
		return nil, false
	}
	return occs, true
}

func (r *SQLRegistry) FetchOccurrence(ctx context.Context, eventID string, start time.Time) (*model.TimeOccurrence, bool) {
	o, err := r.occurrences.GetByEventAndStart(ctx, eventID, start)
	if err != nil {
		r.fail(ctx, "fetch_occurrence", err, "event_id", eventID, "starts_at", start)
		return nil, false
	}
	return o, true
}

func (r *SQLRegistry) SaveOccurrence(ctx context.Context, o model.TimeOccurrence) *model.TimeOccurrence {
	saved, err := r.occurrences.Create(ctx, o)
	if err != nil {
		r.fail(ctx, "save_occurrence", err, "event_id", o.EventID, "user_id", o.UserID, "starts_at", o.StartsAt)
		return nil
	}
	return saved
}

func (r *SQLRegistry) UpdateOccurrenceStatus(ctx context.Context, id string, status model.OccurrenceStatus, completedAt *time.Time) bool {
	updated, err := r.occurrences.UpdateStatus(ctx, id, status, completedAt)
	if err != nil {
		r.fail(ctx, "update_occurrence_status", err, "occurrence_id", id, "status", status)
		return false
	}
	return updated != nil
}
