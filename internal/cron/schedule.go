package cron

import (
	"fmt"
	"sort"
	"time"

	robfigcron "github.com/robfig/cron/v3"
)

// Schedule yields the next run time strictly after the given instant. A zero
// time disables the job.
type Schedule interface {
	Next(after time.Time) time.Time
}

type every time.Duration

// Every runs a job at a fixed interval.
func Every(d time.Duration) Schedule {
	return every(d)
}

func (e every) Next(after time.Time) time.Time {
	if e <= 0 {
		return time.Time{}
	}
	return after.Add(time.Duration(e))
}

type dailyAt struct {
	hours []int
	loc   *time.Location
}

// DailyAt runs a job on the hour, at each of the given hours of loc's wall clock.
func DailyAt(hours []int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	clean := make([]int, 0, len(hours))
	seen := map[int]bool{}
	for _, h := range hours {
		if h < 0 || h > 23 || seen[h] {
			continue
		}
		seen[h] = true
		clean = append(clean, h)
	}
	sort.Ints(clean)
	return dailyAt{hours: clean, loc: loc}
}

func (d dailyAt) Next(after time.Time) time.Time {
	if len(d.hours) == 0 {
		return time.Time{}
	}
	local := after.In(d.loc)
	for day := 0; day < 2; day++ {
		for _, h := range d.hours {
			candidate := time.Date(local.Year(), local.Month(), local.Day()+day, h, 0, 0, 0, d.loc)
			if candidate.After(after) {
				return candidate
			}
		}
	}
	return time.Time{}
}

type cronExpr struct {
	spec robfigcron.Schedule
	loc  *time.Location
}

// Cron parses a standard five-field cron expression evaluated on loc's wall clock,
// for cadences the hour lists cannot express.
func Cron(expr string, loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	spec, err := robfigcron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return cronExpr{spec: spec, loc: loc}, nil
}

func (c cronExpr) Next(after time.Time) time.Time {
	return c.spec.Next(after.In(c.loc))
}

// DailyOrCron prefers expr when set and falls back to DailyAt(hours, loc).
func DailyOrCron(expr string, hours []int, loc *time.Location) (Schedule, error) {
	if expr == "" {
		return DailyAt(hours, loc), nil
	}
	return Cron(expr, loc)
}
