package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tempo/internal/database"
	"github.com/dukerupert/tempo/internal/model"
	"github.com/dukerupert/tempo/internal/normalize"
)

// Quarantined is a stored event that could not be decoded. List queries skip
// it and report it here.
type Quarantined struct {
	EventID string
	Err     error
}

type EventStore struct {
	db  *database.DB
	now func() time.Time
}

func NewEventStore(db *database.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

const eventCols = `id, user_id, entity_type, entity_id, title, description, color, priority,
	starts_at, ends_at, duration, is_all_day, timezone, recurrence, status, completed_at, created_at, updated_at`

func scanEventRow(scanner interface{ Scan(...any) error }) (normalize.Row, error) {
	var r normalize.Row
	err := scanner.Scan(
		&r.ID, &r.UserID, &r.EntityType, &r.EntityID, &r.Title, &r.Description, &r.Color, &r.Priority,
		&r.StartsAt, &r.EndsAt, &r.Duration, &r.IsAllDay, &r.Timezone, &r.Recurrence, &r.Status,
		&r.CompletedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return normalize.Row{}, err
	}
	r.StartsAt = r.StartsAt.UTC()
	r.EndsAt = utc(r.EndsAt)
	r.CompletedAt = utc(r.CompletedAt)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (s *EventStore) Create(ctx context.Context, e model.TimeEvent) (*model.TimeEvent, error) {
	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	r, err := normalize.RowFromEvent(e)
	if err != nil {
		return nil, fmt.Errorf("encode time event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO time_events (`+eventCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, r.EntityType, r.EntityID, r.Title, r.Description, r.Color, r.Priority,
		r.StartsAt, nullTime(r.EndsAt), r.Duration, s.db.Bool(r.IsAllDay), nullString(r.Timezone),
		nullString(r.Recurrence), r.Status, nullTime(r.CompletedAt), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert time event: %w", err)
	}

	return s.GetByID(ctx, e.ID)
}

func (s *EventStore) GetByID(ctx context.Context, id string) (*model.TimeEvent, error) {
	return getEvent(ctx, s.db.DB, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEvent(ctx context.Context, q queryer, db *database.DB, id string) (*model.TimeEvent, error) {
	row := q.QueryRowContext(ctx, db.Rebind(`SELECT `+eventCols+` FROM time_events WHERE id = ?`), id)
	r, err := scanEventRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time event: %w", err)
	}

	e, err := normalize.EventFromRow(r)
	if err != nil {
		return nil, fmt.Errorf("decode time event: %w", err)
	}
	return &e, nil
}

// ListByUser returns the user's events that can produce an occurrence in r:
// every recurring series anchored before r ends, plus single events
// overlapping r. A nil range returns everything.
func (s *EventStore) ListByUser(ctx context.Context, userID string, r *model.DateRange) ([]model.TimeEvent, []Quarantined, error) {
	query := `SELECT ` + eventCols + ` FROM time_events WHERE user_id = ?`
	args := []any{userID}
	if r != nil {
		query += ` AND starts_at <= ?`
		args = append(args, r.End.UTC())
	}
	query += ` ORDER BY starts_at ASC`

	events, bad, err := s.list(ctx, query, args...)
	if err != nil || r == nil {
		return events, bad, err
	}

	var inRange []model.TimeEvent
	for _, e := range events {
		if e.IsRecurring() || !e.End().Before(r.Start) {
			inRange = append(inRange, e)
		}
	}
	return inRange, bad, nil
}

func (s *EventStore) ListByEntity(ctx context.Context, userID string, entityType model.EntityType, entityID string) ([]model.TimeEvent, []Quarantined, error) {
	return s.list(ctx,
		`SELECT `+eventCols+` FROM time_events
		 WHERE user_id = ? AND entity_type = ? AND entity_id = ?
		 ORDER BY created_at ASC`,
		userID, string(entityType), entityID,
	)
}

// ListOverdue returns single-instance scheduled events that ended before cutoff.
func (s *EventStore) ListOverdue(ctx context.Context, cutoff time.Time) ([]model.TimeEvent, []Quarantined, error) {
	events, bad, err := s.list(ctx,
		`SELECT `+eventCols+` FROM time_events
		 WHERE status = ? AND starts_at < ?
		 ORDER BY starts_at ASC`,
		string(model.StatusScheduled), cutoff.UTC(),
	)
	if err != nil {
		return nil, bad, err
	}

	var overdue []model.TimeEvent
	for _, e := range events {
		if !e.IsRecurring() && e.End().Before(cutoff) {
			overdue = append(overdue, e)
		}
	}
	return overdue, bad, nil
}

func (s *EventStore) list(ctx context.Context, query string, args ...any) ([]model.TimeEvent, []Quarantined, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query time events: %w", err)
	}
	defer rows.Close()

	var events []model.TimeEvent
	var bad []Quarantined
	for rows.Next() {
		r, err := scanEventRow(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan time event: %w", err)
		}
		e, err := normalize.EventFromRow(r)
		if err != nil {
			bad = append(bad, Quarantined{EventID: r.ID, Err: err})
			continue
		}
		events = append(events, e)
	}
	return events, bad, rows.Err()
}

// Update applies patch inside a transaction. It returns nil when the event
// does not exist.
func (s *EventStore) Update(ctx context.Context, id string, patch model.EventPatch) (*model.TimeEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getEvent(ctx, tx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	next := patch.Apply(*current)
	next.UpdatedAt = s.now().UTC()
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("update time event: %w", err)
	}

	r, err := normalize.RowFromEvent(next)
	if err != nil {
		return nil, fmt.Errorf("encode time event: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.db.Rebind(
		`UPDATE time_events
		 SET title = ?, description = ?, color = ?, priority = ?, starts_at = ?, ends_at = ?,
		     duration = ?, is_all_day = ?, timezone = ?, recurrence = ?, status = ?,
		     completed_at = ?, updated_at = ?
		 WHERE id = ?`),
		r.Title, r.Description, r.Color, r.Priority, r.StartsAt, nullTime(r.EndsAt),
		r.Duration, s.db.Bool(r.IsAllDay), nullString(r.Timezone), nullString(r.Recurrence), r.Status,
		nullTime(r.CompletedAt), r.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update time event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetByID(ctx, id)
}

// UpdateStatus sets the status. Completing stamps completed_at with the
// given time; any other status clears it.
func (s *EventStore) UpdateStatus(ctx context.Context, id string, status model.EventStatus, at time.Time) (*model.TimeEvent, error) {
	patch := model.EventPatch{Status: &status, ClearCompletedAt: true}
	if status == model.StatusCompleted {
		patch.ClearCompletedAt = false
		patch.CompletedAt = &at
	}
	return s.Update(ctx, id, patch)
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM time_events WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete time event: %w", err)
	}
	return nil
}

// DeleteByEntity removes every event of the entity and returns how many went.
func (s *EventStore) DeleteByEntity(ctx context.Context, userID string, entityType model.EntityType, entityID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`DELETE FROM time_events WHERE user_id = ? AND entity_type = ? AND entity_id = ?`),
		userID, string(entityType), entityID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete time events by entity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
