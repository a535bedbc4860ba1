package scheduler

import (
	"fmt"
	"time"
)

// Schedule yields the first run time strictly after a given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

type dailyAt struct {
	hour   int
	minute int
	loc    *time.Location
}

// DailyAt parses an "HH:MM" wall-clock time in loc.
func DailyAt(clock string, loc *time.Location) (Schedule, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return nil, fmt.Errorf("invalid daily time %q: %w", clock, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return dailyAt{hour: t.Hour(), minute: t.Minute(), loc: loc}, nil
}

func (d dailyAt) Next(after time.Time) time.Time {
	local := after.In(d.loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

type every time.Duration

// Every runs a job at a fixed interval from the previous due time.
func Every(interval time.Duration) Schedule {
	return every(interval)
}

func (e every) Next(after time.Time) time.Time {
	return after.Add(time.Duration(e))
}
