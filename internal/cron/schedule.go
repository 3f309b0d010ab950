package cron

import (
	"fmt"
	"time"

	"github.com/alo17/ilan-backend/pkg/config"
)

// Schedule decides when the next cycle starts.
type Schedule interface {
	Next(after time.Time) time.Time
}

type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

// DailyAt fires once a day at hour:minute wall-clock time in loc.
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return dailySchedule{hour: hour, minute: minute, loc: loc}
}

func (d dailySchedule) Next(after time.Time) time.Time {
	local := after.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

type intervalSchedule struct {
	every time.Duration
}

// Every fires at a fixed interval from the previous tick.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = defaultInterval
	}
	return intervalSchedule{every: d}
}

func (i intervalSchedule) Next(after time.Time) time.Time {
	return after.Add(i.every)
}

// ScheduleFromConfig builds the daily schedule from ALO17_CRON_SCHEDULE_TIME in
// ALO17_CRON_TIMEZONE.
func ScheduleFromConfig(cfg config.CronConfig) (Schedule, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load cron timezone %q: %w", cfg.Timezone, err)
	}
	hour, minute, err := cfg.ScheduleClock()
	if err != nil {
		return nil, err
	}
	return DailyAt(hour, minute, loc), nil
}
