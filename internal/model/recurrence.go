package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

type Frequency string

const (
	FrequencyOnce     Frequency = "once"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiWeekly Frequency = "bi-weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
	FrequencyCustom   Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyBiWeekly,
		FrequencyMonthly, FrequencyYearly, FrequencyCustom:
		return true
	}
	return false
}

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// RecurrenceConfig describes how a TimeEvent repeats. Frequency selects the
// variant; Validate enforces which of the other fields each variant may use.
type RecurrenceConfig struct {
	Frequency      Frequency  `json:"frequency"`
	Interval       int        `json:"interval"`
	DaysOfWeek     []int      `json:"days_of_week,omitempty"`
	DayOfMonth     int        `json:"day_of_month,omitempty"`
	DaysOfMonth    []int      `json:"days_of_month,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	MaxOccurrences int        `json:"max_occurrences,omitempty"`
	CustomPattern  string     `json:"custom_pattern,omitempty"`
}

func (c RecurrenceConfig) Validate() error {
	if !c.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, c.Frequency)
	}
	if c.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1, got %d", ErrInvalidRecurrence, c.Interval)
	}
	if len(c.DaysOfWeek) > 0 {
		switch c.Frequency {
		case FrequencyWeekly, FrequencyBiWeekly, FrequencyCustom:
		default:
			return fmt.Errorf("%w: days_of_week not allowed for %s", ErrInvalidRecurrence, c.Frequency)
		}
		for _, d := range c.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidRecurrence, d)
			}
		}
	}
	if c.DayOfMonth != 0 || len(c.DaysOfMonth) > 0 {
		if c.Frequency != FrequencyMonthly {
			return fmt.Errorf("%w: day of month not allowed for %s", ErrInvalidRecurrence, c.Frequency)
		}
		if c.DayOfMonth != 0 && len(c.DaysOfMonth) > 0 {
			return fmt.Errorf("%w: day_of_month and days_of_month are exclusive", ErrInvalidRecurrence)
		}
		days := c.DaysOfMonth
		if c.DayOfMonth != 0 {
			days = []int{c.DayOfMonth}
		}
		for _, d := range days {
			if d < 1 || d > 31 {
				return fmt.Errorf("%w: day of month %d out of range 1-31", ErrInvalidRecurrence, d)
			}
		}
	}
	if c.MaxOccurrences < 0 {
		return fmt.Errorf("%w: max_occurrences must not be negative", ErrInvalidRecurrence)
	}
	if c.CustomPattern != "" && c.Frequency != FrequencyCustom {
		return fmt.Errorf("%w: custom_pattern only allowed for custom", ErrInvalidRecurrence)
	}
	return nil
}

// Clone returns a deep copy.
func (c RecurrenceConfig) Clone() RecurrenceConfig {
	c.DaysOfWeek = slices.Clone(c.DaysOfWeek)
	c.DaysOfMonth = slices.Clone(c.DaysOfMonth)
	if c.EndDate != nil {
		t := *c.EndDate
		c.EndDate = &t
	}
	return c
}

// SortedDaysOfWeek returns the weekday set sorted with duplicates removed.
func (c RecurrenceConfig) SortedDaysOfWeek() []int {
	return sortedSet(c.DaysOfWeek)
}

// SortedDaysOfMonth returns the day-of-month set sorted with duplicates removed.
func (c RecurrenceConfig) SortedDaysOfMonth() []int {
	return sortedSet(c.DaysOfMonth)
}

func sortedSet(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// EncodeRecurrence serializes a config for storage.
func EncodeRecurrence(c RecurrenceConfig) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// DecodeRecurrence parses a stored config, rejecting unknown keys and
// anything Validate refuses.
func DecodeRecurrence(data []byte) (*RecurrenceConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c RecurrenceConfig
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
