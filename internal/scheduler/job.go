package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerSpec is a declarative firing time, always UTC.
//
//	"16:35"      daily at 16:35
//	"MON 08:00"  weekly on Monday at 08:00
type TriggerSpec string

var weekdays = map[string]int{
	"SUN": 0, "MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6,
}

// CronExpr translates the trigger into a standard 5-field cron
// expression for next-fire computation.
func (t TriggerSpec) CronExpr() (string, error) {
	fields := strings.Fields(string(t))

	var day, clock string
	switch len(fields) {
	case 1:
		day, clock = "*", fields[0]
	case 2:
		dow, ok := weekdays[strings.ToUpper(fields[0])]
		if !ok {
			return "", fmt.Errorf("invalid weekday %q in trigger %q", fields[0], t)
		}
		day, clock = fmt.Sprintf("%d", dow), fields[1]
	default:
		return "", fmt.Errorf("invalid trigger %q (use: \"HH:MM\" or \"DAY HH:MM\")", t)
	}

	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return "", fmt.Errorf("invalid time %q in trigger %q", clock, t)
	}
	return fmt.Sprintf("%d %d * * %s", parsed.Minute(), parsed.Hour(), day), nil
}

// Schedule parses the trigger into a cron schedule.
func (t TriggerSpec) Schedule() (cron.Schedule, error) {
	expr, err := t.CronExpr()
	if err != nil {
		return nil, err
	}
	return cron.ParseStandard(expr)
}

// Handler is the work a job performs on each firing.
type Handler func(ctx context.Context) error

// Job is one declarative (trigger, handler) entry in the timetable.
// MaxRetries and RetryBaseDelay override the scheduler-wide retry
// policy for this job; zero values fall back to the defaults.
type Job struct {
	Name           string
	Trigger        TriggerSpec
	Handler        Handler
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Backoff returns the delay before retry number attempt (1-based):
// base * 2^(attempt-1). It is a pure computation so retry timing can be
// tested without a scheduler.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<(attempt-1))
}
