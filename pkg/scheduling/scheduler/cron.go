package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	lperrors "github.com/vnykmshr/lazypool/pkg/common/errors"
	"github.com/vnykmshr/lazypool/pkg/scheduling/threadpool"
)

// newParser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as "@hourly" or "@every 30s".
func newParser() cron.Parser {
	return cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
}

// ScheduleCron runs task whenever cronExpr fires, evaluated in the
// scheduler's location.
//
// Examples:
//
//	"0 */2 * * *"    every 2 hours
//	"30 14 * * 1-5"  2:30 PM on weekdays
//	"*/10 * * * * *" every 10 seconds
//	"@daily"         every day at midnight
func (s *Scheduler) ScheduleCron(id string, cronExpr string, task threadpool.Task) error {
	if err := validateJob(id, task); err != nil {
		return err
	}

	schedule, err := s.parseCron(cronExpr)
	if err != nil {
		return err
	}

	now := time.Now()
	return s.add(&job{
		id:       id,
		task:     task,
		runAt:    schedule.Next(now.In(s.location)),
		cronExpr: cronExpr,
		schedule: schedule,
		created:  now,
	})
}

// ValidateCronExpression reports whether cronExpr can be scheduled.
func (s *Scheduler) ValidateCronExpression(cronExpr string) error {
	_, err := s.parseCron(cronExpr)
	return err
}

// NextRuns returns the next n fire times of cronExpr after from.
func (s *Scheduler) NextRuns(cronExpr string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := s.parseCron(cronExpr)
	if err != nil {
		return nil, err
	}

	runs := make([]time.Time, 0, n)
	current := from.In(s.location)
	for i := 0; i < n; i++ {
		current = schedule.Next(current)
		if current.IsZero() {
			break
		}
		runs = append(runs, current)
	}
	return runs, nil
}

func (s *Scheduler) parseCron(cronExpr string) (cron.Schedule, error) {
	if cronExpr == "" {
		return nil, lperrors.NewValidationError("scheduler", "cron_expr", cronExpr, "cannot be empty")
	}

	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return nil, lperrors.NewValidationError("scheduler", "cron_expr", cronExpr, err.Error()).
			WithHint(`use five fields ("m h dom mon dow"), six with seconds, or a descriptor like "@hourly"`)
	}
	return schedule, nil
}
