package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mwhitver/tablevault/internal/model"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron rejects anything that is not a five-field cron expression.
// Schedules are validated at creation time so execution never sees a
// malformed expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return model.Validation(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return nil
}

// NextRun returns the earliest time strictly after `after` that satisfies
// the expression.
func NextRun(expr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, model.Validation(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return sched.Next(after), nil
}
