package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/tempo/internal/database"
	"github.com/dukerupert/tempo/internal/model"
)

// OccurrenceStore persists occurrences that carry state of their own. Today
// that is habit completions; every other occurrence is computed.
type OccurrenceStore struct {
	db *database.DB
}

func NewOccurrenceStore(db *database.DB) *OccurrenceStore {
	return &OccurrenceStore{db: db}
}

const occurrenceCols = `id, event_id, user_id, starts_at, ends_at, status, completed_at, created_at`

func scanOccurrence(scanner interface{ Scan(...any) error }) (*model.TimeOccurrence, error) {
	var o model.TimeOccurrence
	err := scanner.Scan(&o.ID, &o.EventID, &o.UserID, &o.StartsAt, &o.EndsAt, &o.Status, &o.CompletedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.StartsAt = o.StartsAt.UTC()
	o.EndsAt = o.EndsAt.UTC()
	o.CompletedAt = utc(o.CompletedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

func (s *OccurrenceStore) Create(ctx context.Context, o model.TimeOccurrence) (*model.TimeOccurrence, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO time_occurrences (`+occurrenceCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.EventID, o.UserID, o.StartsAt.UTC(), o.EndsAt.UTC(), string(o.Status),
		nullTime(utc(o.CompletedAt)), o.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert time occurrence: %w", err)
	}
	return s.GetByID(ctx, o.ID)
}

func (s *OccurrenceStore) GetByID(ctx context.Context, id string) (*model.TimeOccurrence, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+occurrenceCols+` FROM time_occurrences WHERE id = ?`), id)
	o, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time occurrence: %w", err)
	}
	return o, nil
}

func (s *OccurrenceStore) GetByEventAndStart(ctx context.Context, eventID string, start time.Time) (*model.TimeOccurrence, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT `+occurrenceCols+` FROM time_occurrences WHERE event_id = ? AND starts_at = ?`),
		eventID, start.UTC(),
	)
	o, err := scanOccurrence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get time occurrence: %w", err)
	}
	return o, nil
}

// ListByUser returns stored occurrences starting within r, inclusive.
func (s *OccurrenceStore) ListByUser(ctx context.Context, userID string, r model.DateRange) ([]model.TimeOccurrence, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT `+occurrenceCols+` FROM time_occurrences
		 WHERE user_id = ? AND starts_at >= ? AND starts_at <= ?
		 ORDER BY starts_at ASC`),
		userID, r.Start.UTC(), r.End.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query time occurrences: %w", err)
	}
	defer rows.Close()

	var out []model.TimeOccurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time occurrence: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateStatus returns nil when the occurrence does not exist.
func (s *OccurrenceStore) UpdateStatus(ctx context.Context, id string, status model.OccurrenceStatus, completedAt *time.Time) (*model.TimeOccurrence, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE time_occurrences SET status = ?, completed_at = ? WHERE id = ?`),
		string(status), nullTime(utc(completedAt)), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update time occurrence: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}
