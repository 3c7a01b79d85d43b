package scheduler

import (
	"time"

	"github.com/psds-microservice/installation-service/internal/model"
)

const (
	SlotStep               = 15 * time.Minute
	DefaultDurationMinutes = 120
	// MaxDurationMinutes caps a single job at one working day plus overtime.
	MaxDurationMinutes = 16 * 60
)

// Snap rounds t to the nearest slot boundary; an exact half slot rounds up.
func Snap(t time.Time) time.Time {
	t = t.UTC().Truncate(time.Second)
	base := t.Truncate(SlotStep)
	if 2*t.Sub(base) >= SlotStep {
		return base.Add(SlotStep)
	}
	return base
}

// DurationOf returns the job's planned effort, defaulting when unknown.
func DurationOf(inst *model.Installation) int {
	if inst.DurationMinutes != nil && *inst.DurationMinutes > 0 {
		return *inst.DurationMinutes
	}
	return DefaultDurationMinutes
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
