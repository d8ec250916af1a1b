// Package recovery plans rest breaks after scheduled work.
package recovery

import (
	"fmt"
	"slices"

	"github.com/dukerupert/tempo/internal/model"
)

const (
	LongTaskThreshold     = 30
	AccumulationThreshold = 30
)

// ladder is evaluated highest first.
var ladder = []struct {
	minWork, breakMinutes int
}{
	{90, 20},
	{60, 15},
	{45, 10},
	{30, 5},
}

// Importance decides whether an event is flagged important.
type Importance func(model.TimeEvent) bool

// ByPriority treats events at or above min as important.
func ByPriority(min int) Importance {
	return func(e model.TimeEvent) bool {
		return e.Priority >= min
	}
}

// ImportantTasks flags events whose entity is one of the high-priority tasks.
func ImportantTasks(tasks []model.Task) Importance {
	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.Priority() >= model.PriorityHigh {
			ids[t.ID] = true
		}
	}
	return func(e model.TimeEvent) bool {
		return e.EntityType == model.EntityTask && ids[e.EntityID]
	}
}

// BreakDuration maps effective work minutes through the break ladder.
func BreakDuration(effectiveMinutes int) int {
	for _, step := range ladder {
		if effectiveMinutes >= step.minWork {
			return step.breakMinutes
		}
	}
	return 0
}

// EffectiveWorkDuration returns the minutes a break after this task should be
// sized from, or 0 when no break is due yet. block holds the work already
// scheduled before the task.
func EffectiveWorkDuration(taskMinutes int, important bool, block []model.TimeEvent) int {
	return effective(taskMinutes, important, sinceLastRecovery(block))
}

func effective(taskMinutes int, important bool, accumulated int) int {
	if taskMinutes >= LongTaskThreshold {
		return taskMinutes
	}
	if important {
		return max(taskMinutes, LongTaskThreshold)
	}
	if total := accumulated + taskMinutes; total >= AccumulationThreshold {
		return total
	}
	return 0
}

// sinceLastRecovery walks backward in time summing work until a recovery
// event is reached.
func sinceLastRecovery(block []model.TimeEvent) int {
	sorted := slices.Clone(block)
	slices.SortStableFunc(sorted, func(a, b model.TimeEvent) int {
		return a.StartsAt.Compare(b.StartsAt)
	})

	total := 0
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		if e.Status == model.StatusCancelled {
			continue
		}
		if e.EntityType == model.EntityRecovery {
			break
		}
		total += minutes(e)
	}
	return total
}

// ComputeBlockBreaks walks the day's task events in start order and records a
// break wherever one of the triggers fires. Each break resets the running
// accumulator. A nil importance treats every task as unimportant.
func ComputeBlockBreaks(events []model.TimeEvent, important Importance) []model.PlannedBreak {
	var tasks []model.TimeEvent
	for _, e := range events {
		if e.EntityType == model.EntityTask && e.Status != model.StatusCancelled {
			tasks = append(tasks, e)
		}
	}
	slices.SortStableFunc(tasks, func(a, b model.TimeEvent) int {
		return a.StartsAt.Compare(b.StartsAt)
	})

	var breaks []model.PlannedBreak
	accumulated := 0
	blockNum := 1

	for _, t := range tasks {
		m := minutes(t)
		imp := important != nil && important(t)

		eff := effective(m, imp, accumulated)
		d := BreakDuration(eff)
		if d == 0 {
			accumulated += m
			continue
		}

		breaks = append(breaks, model.PlannedBreak{
			AfterTaskID:     t.ID,
			AfterTaskEndsAt: t.End(),
			BreakDuration:   d,
			Block:           fmt.Sprintf("block-%d", blockNum),
		})
		blockNum++
		accumulated = 0
	}

	return breaks
}

func minutes(e model.TimeEvent) int {
	return int(e.Length().Minutes())
}
