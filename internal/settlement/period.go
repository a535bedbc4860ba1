package settlement

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a period rule yields an empty or
// inverted window.
var ErrInvalidWindow = errors.New("settlement window has no positive width")

const bonusMonthLayout = "2006-01"

// Window is the half-open interval [Start, End) a settlement covers.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) validate() error {
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: [%s, %s)", ErrInvalidWindow, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Period is the recurrence rule of a billboard profile.
type Period int

const (
	FirstSundayOfMonth Period = iota
	EverySunday
	EverySecondSunday
)

// ParsePeriod maps a stored calculation_period. An empty value means
// monthly.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "", "first_sunday_of_every_month":
		return FirstSundayOfMonth, nil
	case "every_sunday":
		return EverySunday, nil
	case "every_second_sunday":
		return EverySecondSunday, nil
	}
	return 0, fmt.Errorf("unknown calculation period %q", s)
}

func (p Period) String() string {
	switch p {
	case EverySunday:
		return "every_sunday"
	case EverySecondSunday:
		return "every_second_sunday"
	default:
		return "first_sunday_of_every_month"
	}
}

// Window returns the sales window settled on asOf, in asOf's location.
func (p Period) Window(asOf time.Time) (Window, error) {
	day := startOfDay(asOf)

	var w Window
	switch p {
	case EverySunday:
		w.Start = startOfISOWeek(day)
		w.End = w.Start.AddDate(0, 0, 7)
	case EverySecondSunday:
		first := firstSunday(day.Year(), day.Month(), day.Location())
		second := first.AddDate(0, 0, 7)
		if day.Before(second) {
			w.Start = first
			w.End = second
		} else {
			w.Start = second
			w.End = startOfISOWeek(day).AddDate(0, 0, 7)
		}
	default:
		w.Start = startOfMonth(day)
		w.End = w.Start.AddDate(0, 1, 0)
	}

	if err := w.validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Next returns the firing date that follows asOf. It is always strictly
// after asOf's day.
func (p Period) Next(asOf time.Time) time.Time {
	day := startOfDay(asOf)

	switch p {
	case EverySunday:
		return day.AddDate(0, 0, 7-int(day.Weekday()))
	case EverySecondSunday:
		return day.AddDate(0, 0, -int(day.Weekday())+14)
	default:
		next := startOfMonth(day).AddDate(0, 1, 0)
		return firstSunday(next.Year(), next.Month(), next.Location())
	}
}

// BonusMonth is the month a payout firing at next belongs to: one period
// length before it.
func (p Period) BonusMonth(next time.Time) string {
	switch p {
	case EverySunday:
		return next.AddDate(0, 0, -7).Format(bonusMonthLayout)
	case EverySecondSunday:
		return next.AddDate(0, 0, -14).Format(bonusMonthLayout)
	default:
		return startOfMonth(next).AddDate(0, -1, 0).Format(bonusMonthLayout)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// startOfISOWeek returns the Monday on or before day.
func startOfISOWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func firstSunday(year int, month time.Month, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return first.AddDate(0, 0, (7-int(first.Weekday()))%7)
}
