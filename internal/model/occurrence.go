package model

import "time"

type OccurrenceStatus string

const (
	OccurrencePending   OccurrenceStatus = "pending"
	OccurrenceCompleted OccurrenceStatus = "completed"
	OccurrenceSkipped   OccurrenceStatus = "skipped"
	OccurrenceMissed    OccurrenceStatus = "missed"
)

func (s OccurrenceStatus) Valid() bool {
	switch s {
	case OccurrencePending, OccurrenceCompleted, OccurrenceSkipped, OccurrenceMissed:
		return true
	}
	return false
}

// TimeOccurrence is one concrete instance of a TimeEvent. Computed occurrences
// carry an ID derived from the event and start time; only habit completions
// are persisted.
type TimeOccurrence struct {
	ID          string           `json:"id"`
	EventID     string           `json:"event_id"`
	UserID      string           `json:"user_id"`
	StartsAt    time.Time        `json:"starts_at"`
	EndsAt      time.Time        `json:"ends_at"`
	Status      OccurrenceStatus `json:"status"`
	CompletedAt *time.Time       `json:"completed_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

type ConflictResult struct {
	HasConflict      bool      `json:"has_conflict"`
	ConflictingEvent TimeEvent `json:"conflicting_event"`
	OverlapMinutes   int       `json:"overlap_minutes"`
}

type TimeSlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration"`
}

// PlannedBreak is a recovery recommendation anchored at the end of a task.
type PlannedBreak struct {
	AfterTaskID     string    `json:"after_task_id"`
	AfterTaskEndsAt time.Time `json:"after_task_ends_at"`
	BreakDuration   int       `json:"break_duration"`
	Block           string    `json:"block,omitempty"`
	Suggestion      string    `json:"suggestion,omitempty"`
}
