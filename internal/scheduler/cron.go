package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hypermarketllc/hookline/internal/webhooks"
)

// CronSpec converts a webhook schedule descriptor into a cron expression.
// Manual schedules have no expression and return an error.
func CronSpec(sched *webhooks.Schedule) (string, error) {
	if sched == nil {
		return "", fmt.Errorf("no schedule")
	}

	switch sched.Type {
	case webhooks.ScheduleDaily:
		hour, minute, err := parseClock(sched.Time)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), nil

	case webhooks.ScheduleWeekly:
		hour, minute, err := parseClock(sched.Time)
		if err != nil {
			return "", err
		}
		if sched.DayOfWeek < 0 || sched.DayOfWeek > 6 {
			return "", fmt.Errorf("day of week out of range: %d", sched.DayOfWeek)
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, sched.DayOfWeek), nil

	case webhooks.ScheduleInterval:
		if sched.IntervalMinutes < 1 {
			return "", fmt.Errorf("interval must be at least one minute")
		}
		return fmt.Sprintf("@every %dm", sched.IntervalMinutes), nil

	case webhooks.ScheduleManual:
		return "", fmt.Errorf("manual schedules do not run automatically")

	default:
		return "", fmt.Errorf("unknown schedule type: %s", sched.Type)
	}
}

// parseClock parses a "15:04" time-of-day value.
func parseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day: %q", value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}

	return hour, minute, nil
}
