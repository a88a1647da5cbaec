package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Interval is a parsed runbook schedule: either a 5-field cron
// expression or a plain Go duration ("30s", "5m") — both forms are
// valid for cron targets. Queue-retry cooldowns do not go through
// Interval; they are parsed as plain Go durations.
type Interval struct {
	cronSchedule cron.Schedule
	duration     time.Duration
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseInterval tries the standard 5-field cron form first, then falls
// back to time.ParseDuration. A bare cron expression like "*/5 * * * *"
// and a bare duration like "5m" are both valid runbook cron targets.
func ParseInterval(s string) (Interval, error) {
	if sched, err := cronParser.Parse(s); err == nil {
		return Interval{cronSchedule: sched}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Interval{}, fmt.Errorf("interval %q is neither a valid cron expression nor a Go duration: %w", s, err)
	}
	if d <= 0 {
		return Interval{}, fmt.Errorf("interval %q must be positive", s)
	}
	return Interval{duration: d}, nil
}

// Next computes the next firing time strictly after from.
func (iv Interval) Next(from time.Time) time.Time {
	if iv.cronSchedule != nil {
		return iv.cronSchedule.Next(from)
	}
	return from.Add(iv.duration)
}

// IsCron reports whether iv was parsed as a cron expression rather than a
// plain duration.
func (iv Interval) IsCron() bool {
	return iv.cronSchedule != nil
}
