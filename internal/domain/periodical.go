package domain

import "time"

// PeriodicalTask materializes new board tasks on a cron schedule.
// NextExecutionAt is recomputed after every firing (or on enable); disabling
// freezes it until re-enabled.
type PeriodicalTask struct {
	AutoStart       bool
	BoardID         string
	CreatedAt       time.Time
	Description     string
	Enabled         bool
	ExecutionCount  int
	Executor        string
	ID              string
	LastExecutedAt  *time.Time
	NextExecutionAt time.Time
	Schedule        string
	Title           string
}
