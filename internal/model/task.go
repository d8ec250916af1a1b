package model

import (
	"strings"
	"time"
)

// Task is the task record handed over by the task feature.
type Task struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	SubCategory        string     `json:"sub_category,omitempty"`
	EstimatedTime      int        `json:"estimated_time"`
	Duration           *int       `json:"duration,omitempty"`
	ScheduledDate      string     `json:"scheduled_date,omitempty"`
	ScheduledTime      string     `json:"scheduled_time,omitempty"`
	StartTime          *time.Time `json:"start_time,omitempty"`
	IsRecurring        bool       `json:"is_recurring,omitempty"`
	RecurrenceInterval string     `json:"recurrence_interval,omitempty"`
	IsCompleted        bool       `json:"is_completed"`
	LastCompletedAt    *time.Time `json:"last_completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

var subCategoryPriority = map[string]int{
	"critical":  PriorityHighest,
	"urgent":    PriorityHighest,
	"important": PriorityHigh,
	"high":      PriorityHigh,
	"medium":    PriorityNormal,
	"normal":    PriorityNormal,
	"low":       PriorityLow,
	"someday":   PriorityNone,
}

// PriorityForSubCategory maps a sub-category label to a priority ordinal.
// Unknown labels are treated as normal.
func PriorityForSubCategory(label string) int {
	if p, ok := subCategoryPriority[strings.ToLower(strings.TrimSpace(label))]; ok {
		return p
	}
	return PriorityNormal
}

func (t Task) Priority() int {
	return PriorityForSubCategory(t.SubCategory)
}

// Habit is the habit record handed over by the habit feature. TargetDays are
// weekday indices with Sunday = 0.
type Habit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Frequency   string    `json:"frequency"`
	TargetDays  []int     `json:"target_days,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
