package oncall

import (
	"context"
	"fmt"
	"pagerduty-tools/internal/assert"
	"pagerduty-tools/internal/components/telemetry"
)

const (
	report_collect_schedule = "collect.schedule"
	report_collect_profile  = "collect.profile"
	report_collect_levels   = "collect.levels"
	report_run_notify       = "run.notify"
)

// Result is everything a single run gathered.
type Result struct {
	Levels []Level
	Report string
}

// Emails returns the resolved addresses of the levels, skipping empty ones.
func (r Result) Emails() []string {
	var out []string
	for _, l := range r.Levels {
		if l.Email != "" {
			out = append(out, l.Email)
		}
	}
	return out
}

// Collect fetches the schedule, then each assignee's profile one at a time, and
// formats the report. The first error aborts the whole run.
func Collect(
	ctx context.Context,
	schedule ScheduleSource,
	profiles ProfileSource,
	filter Filter,
	tel telemetry.API,
) (Result, error) {
	assert.NotNil(schedule)
	assert.NotNil(profiles)
	assert.NotNil(tel)

	levels, err := schedule.Schedule(ctx, filter)
	if err != nil {
		tel.ReportBroken(report_collect_schedule, err)
		return Result{}, err
	}
	tel.ReportCount(report_collect_levels, int64(len(levels)))

	for i := range levels {
		email, err := profiles.Email(ctx, levels[i].ProfilePath)
		if err != nil {
			tel.ReportBroken(report_collect_profile, err, levels[i].ProfilePath)
			return Result{}, fmt.Errorf("resolve email of %s: %w", levels[i].Person, err)
		}
		levels[i].Email = email
	}

	return Result{
		Levels: levels,
		Report: FormatReport(levels),
	}, nil
}

// Notifier delivers the result of a run somewhere.
//
// note: fault injection point
type Notifier interface {
	Notify(ctx context.Context, res Result) error
}

// Run collects the current on call levels and hands them to the notifier.
func Run(
	ctx context.Context,
	schedule ScheduleSource,
	profiles ProfileSource,
	filter Filter,
	notifier Notifier,
	tel telemetry.API,
) (Result, error) {
	assert.NotNil(notifier)

	res, err := Collect(ctx, schedule, profiles, filter, tel)
	if err != nil {
		return Result{}, err
	}
	err = notifier.Notify(ctx, res)
	if err != nil {
		tel.ReportBroken(report_run_notify, err)
		return res, err
	}
	return res, nil
}
