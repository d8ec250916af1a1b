// Package datecalc holds the date arithmetic shared by the scheduling packages.
// Every function is pure; times keep the location they were given.
package datecalc

import (
	"time"

	"github.com/dukerupert/tempo/internal/model"
)

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// RangesOverlap reports whether a and b intersect. Touching endpoints do not count.
func RangesOverlap(a, b model.DateRange) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// CalculateOverlap returns the minutes a and b share, or 0 when they don't overlap.
func CalculateOverlap(a, b model.DateRange) int {
	if !RangesOverlap(a, b) {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return Duration(start, end)
}

// IsDateInRange reports whether d lies within r, endpoints included.
func IsDateInRange(d time.Time, r model.DateRange) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// DayBounds returns local midnight through 23:59:59.999 of d's day.
func DayBounds(d time.Time) model.DateRange {
	y, m, day := d.Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, d.Location())
	end := time.Date(y, m, day+1, 0, 0, 0, 0, d.Location()).Add(-time.Millisecond)
	return model.DateRange{Start: start, End: end}
}

// AddInterval advances date by interval units of freq. Monthly and yearly steps
// clamp to the last day of the target month. Once and custom are returned
// unchanged; callers branch on those before stepping.
func AddInterval(date time.Time, freq model.Frequency, interval int) time.Time {
	switch freq {
	case model.FrequencyDaily:
		return date.AddDate(0, 0, interval)
	case model.FrequencyWeekly:
		return date.AddDate(0, 0, 7*interval)
	case model.FrequencyBiWeekly:
		return date.AddDate(0, 0, 14*interval)
	case model.FrequencyMonthly:
		return addMonths(date, interval)
	case model.FrequencyYearly:
		return addMonths(date, 12*interval)
	}
	return date
}

func addMonths(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, date.Location())
	if last := DaysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

// SetDayOfWeek moves date to the given weekday of its Sunday-based week,
// keeping the time of day.
func SetDayOfWeek(date time.Time, weekday time.Weekday) time.Time {
	return date.AddDate(0, 0, int(weekday)-int(date.Weekday()))
}

// SetDayOfMonth moves date to the given day of its month, clamped to the
// month's length, keeping the time of day.
func SetDayOfMonth(date time.Time, day int) time.Time {
	y, m, _ := date.Date()
	if last := DaysInMonth(y, m); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(y, m, day, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func AddMinutes(date time.Time, minutes int) time.Time {
	return date.Add(time.Duration(minutes) * time.Minute)
}

// Duration returns end - start in whole minutes, truncated toward zero.
func Duration(start, end time.Time) int {
	return int(end.Sub(start) / time.Minute)
}

// RangeDuration is Duration over a DateRange.
func RangeDuration(r model.DateRange) int {
	return Duration(r.Start, r.End)
}

// IsSameDay compares calendar days in a's location.
func IsSameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseISO accepts RFC 3339 timestamps and bare YYYY-MM-DD dates (UTC midnight).
func ParseISO(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// FormatISO renders t in UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}
