package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

// schedulerInterval is how often due periodical tasks are polled
const schedulerInterval = time.Minute

// Scheduler fires periodical task templates on their cron schedule. Each
// firing creates a new board task in the intake column; templates with
// auto-start also queue the description as the first executor prompt.
type Scheduler struct {
	intakeColumn string
	periodicals  ports.PeriodicalTaskRepository
	sessions     *SessionManager
	tasks        ports.TaskStore

	done chan struct{}
	stop chan struct{}
}

// NewScheduler creates a periodical task scheduler
func NewScheduler(
	periodicals ports.PeriodicalTaskRepository,
	tasks ports.TaskStore,
	sessions *SessionManager,
	intakeColumn string,
) *Scheduler {
	return &Scheduler{
		done:         make(chan struct{}),
		intakeColumn: intakeColumn,
		periodicals:  periodicals,
		sessions:     sessions,
		stop:         make(chan struct{}),
		tasks:        tasks,
	}
}

// Start runs the polling loop until Stop is called
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(schedulerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Tick(ctx, now.UTC())
			}
		}
	}()
}

// Stop halts the polling loop and waits for the in-flight tick
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// Tick fires every due template once. Recording the next execution time
// before any slow work makes the tick idempotent: a template never fires
// twice for the same due instant.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	due, err := s.periodicals.ListDue(ctx, now)
	if err != nil {
		logging.Logger.Error("Failed to list due periodical tasks", "error", err)
		return
	}

	for _, template := range due {
		if err := s.fire(ctx, template, now); err != nil {
			logging.Logger.Error("Failed to fire periodical task",
				"periodical_id", template.ID, "title", template.Title, "error", err)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, template domain.PeriodicalTask, now time.Time) error {
	next, err := NextCronExecution(template.Schedule, now)
	if err != nil {
		return fmt.Errorf("bad schedule %q: %w", template.Schedule, err)
	}
	if err := s.periodicals.RecordExecution(ctx, template.ID, now, next); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	task, err := s.tasks.CreateTask(ctx, template.BoardID, s.intakeColumn, template.Title, template.Description)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	logging.Logger.Info("Periodical task fired",
		"periodical_id", template.ID, "task_id", task.ID, "next", next)

	if template.AutoStart && template.Description != "" {
		if _, _, err := s.sessions.QueueMessage(ctx, task.ID, template.Description, template.Executor, nil); err != nil {
			return fmt.Errorf("failed to queue auto-start prompt: %w", err)
		}
	}
	return nil
}

// NextCronExecution computes the next firing after from for a standard
// 5-field cron expression
func NextCronExecution(schedule string, from time.Time) (time.Time, error) {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return spec.Next(from), nil
}
