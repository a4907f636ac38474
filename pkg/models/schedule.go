package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind enumerates the supported schedule trigger kinds.
type ScheduleKind string

const (
	ScheduleHourly  ScheduleKind = "hourly"
	ScheduleDaily   ScheduleKind = "daily"
	ScheduleWeekly  ScheduleKind = "weekly"
	ScheduleMonthly ScheduleKind = "monthly"
	ScheduleCron    ScheduleKind = "cron"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// ScheduleSpec describes when a schedule-triggered definition is due.
// Daily, weekly and monthly kinds fire inside an exact hour-of-day window;
// weekly additionally matches a weekday and monthly a day-of-month.
type ScheduleSpec struct {
	Kind    ScheduleKind `json:"kind" validate:"required,oneof=hourly daily weekly monthly cron"`
	Hour    int          `json:"hour,omitempty"    validate:"gte=0,lte=23"`
	Weekday time.Weekday `json:"weekday,omitempty" validate:"gte=0,lte=6"`
	Day     int          `json:"day,omitempty"     validate:"gte=0,lte=31"`
	Cron    string       `json:"cron,omitempty"`
}

// cronParser accepts the standard 5-field cron format
// (minute hour day month weekday).
func cronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// Validate checks the schedule spec for the fields its kind requires.
func (s *ScheduleSpec) Validate() error {
	switch s.Kind {
	case ScheduleHourly, ScheduleDaily, ScheduleWeekly:
	case ScheduleMonthly:
		if s.Day < 1 || s.Day > 31 {
			return fmt.Errorf("%w: monthly schedule requires day between 1 and 31", ErrInvalidSchedule)
		}
	case ScheduleCron:
		if s.Cron == "" {
			return fmt.Errorf("%w: cron schedule requires an expression", ErrInvalidSchedule)
		}

		if _, err := cronParser().Parse(s.Cron); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidSchedule, err)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, s.Kind)
	}

	return nil
}

// IsDue reports whether a new run is due at now, given the creation time of
// the most recent run (nil when the definition has never run).
func (s *ScheduleSpec) IsDue(now time.Time, lastRun *time.Time) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}

	// A definition that has never run is due immediately, regardless of
	// kind; the hour window only gates repeat runs.
	if lastRun == nil {
		return true, nil
	}

	switch s.Kind {
	case ScheduleHourly:
		return now.Sub(*lastRun) >= time.Hour, nil
	case ScheduleDaily:
		return s.matchesWindow(now) && !sameDay(now, *lastRun), nil
	case ScheduleWeekly:
		return s.matchesWindow(now) && !sameWeek(now, *lastRun), nil
	case ScheduleMonthly:
		return s.matchesWindow(now) && !sameMonth(now, *lastRun), nil
	case ScheduleCron:
		schedule, err := cronParser().Parse(s.Cron)
		if err != nil {
			return false, fmt.Errorf("%w: %s", ErrInvalidSchedule, err)
		}

		// Due when a scheduled fire time falls in (lastRun, now].
		return !schedule.Next(*lastRun).After(now), nil
	}

	return false, nil
}

// matchesWindow checks the exact hour-of-day (and weekday / day-of-month)
// window for calendar-based kinds. Hourly and cron kinds have no window.
func (s *ScheduleSpec) matchesWindow(now time.Time) bool {
	switch s.Kind {
	case ScheduleDaily:
		return now.Hour() == s.Hour
	case ScheduleWeekly:
		return now.Weekday() == s.Weekday && now.Hour() == s.Hour
	case ScheduleMonthly:
		return now.Day() == s.Day && now.Hour() == s.Hour
	default:
		return true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}

func sameWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()

	return ay == by && aw == bw
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()

	return ay == by && am == bm
}
