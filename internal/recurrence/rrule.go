package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/dukerupert/tempo/internal/model"
)

var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// RRule renders cfg as an RFC 5545 RRULE value (without the "RRULE:" prefix).
// It returns false for once and custom, which have no rule to export.
func RRule(cfg model.RecurrenceConfig) (string, bool) {
	return render(cfg, time.Time{})
}

// EventRRule renders the rule of a recurring event. The anchor supplies the
// month day that monthly and yearly series repeat on when the config names
// none.
func EventRRule(e model.TimeEvent) (string, bool) {
	if e.Recurrence == nil {
		return "", false
	}
	return render(*e.Recurrence, e.StartsAt.In(e.Location()))
}

func render(cfg model.RecurrenceConfig, anchor time.Time) (string, bool) {
	opt := rrule.ROption{Interval: cfg.Interval}

	switch cfg.Frequency {
	case model.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case model.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FrequencyBiWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2 * cfg.Interval
	case model.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	case model.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	default:
		return "", false
	}

	if cfg.Frequency == model.FrequencyWeekly {
		for _, d := range cfg.SortedDaysOfWeek() {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	}
	switch cfg.Frequency {
	case model.FrequencyMonthly:
		day := cfg.DayOfMonth
		if day == 0 && len(cfg.DaysOfMonth) == 0 && !anchor.IsZero() {
			day = anchor.Day()
		}
		switch {
		case day > 28:
			opt.Bymonthday, opt.Bysetpos = clampedMonthDay(day), []int{-1}
		case cfg.DayOfMonth > 0:
			opt.Bymonthday = []int{cfg.DayOfMonth}
		case len(cfg.DaysOfMonth) > 0:
			opt.Bymonthday = cfg.SortedDaysOfMonth()
		}
	case model.FrequencyYearly:
		if !anchor.IsZero() && anchor.Day() > 28 {
			opt.Bymonth = []int{int(anchor.Month())}
			opt.Bymonthday, opt.Bysetpos = clampedMonthDay(anchor.Day()), []int{-1}
		}
	}
	if cfg.MaxOccurrences > 0 {
		opt.Count = cfg.MaxOccurrences
	}
	if cfg.EndDate != nil {
		opt.Until = cfg.EndDate.UTC()
	}

	return opt.String(), true
}

// clampedMonthDay lists the 28th through day. With BYSETPOS=-1 the rule
// picks day itself, or the last day of a month that is too short for it.
func clampedMonthDay(day int) []int {
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days
}

// Describe returns a human-readable description of the recurrence.
func Describe(cfg model.RecurrenceConfig) string {
	n := cfg.Interval
	switch cfg.Frequency {
	case model.FrequencyOnce:
		return "Does not repeat"
	case model.FrequencyDaily:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d days", n)
		}
		return "Repeats daily"
	case model.FrequencyWeekly, model.FrequencyBiWeekly:
		weeks := n
		if cfg.Frequency == model.FrequencyBiWeekly {
			weeks = 2 * n
		}
		prefix := "Repeats weekly"
		if weeks > 1 {
			prefix = fmt.Sprintf("Repeats every %d weeks", weeks)
		}
		if days := cfg.SortedDaysOfWeek(); len(days) > 0 && cfg.Frequency == model.FrequencyWeekly {
			var names []string
			for _, d := range days {
				names = append(names, time.Weekday(d).String()[:3])
			}
			return prefix + " on " + strings.Join(names, ", ")
		}
		return prefix
	case model.FrequencyMonthly:
		prefix := "Repeats monthly"
		if n > 1 {
			prefix = fmt.Sprintf("Repeats every %d months", n)
		}
		if cfg.DayOfMonth > 0 {
			return fmt.Sprintf("%s on day %d", prefix, cfg.DayOfMonth)
		}
		return prefix
	case model.FrequencyYearly:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d years", n)
		}
		return "Repeats yearly"
	case model.FrequencyCustom:
		return "Custom schedule"
	}
	return ""
}
