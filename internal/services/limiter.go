package services

import (
	"context"
	"fmt"

	"quadro/internal/domain"
	"quadro/internal/ports"
)

// Limiter is the per-column concurrency gate. A task is "active" in a column
// when it holds a running hook execution or a pending/running executor
// session; the column's max_concurrent_tasks bounds how many distinct tasks
// may be active at once. Admission is FIFO by queued_at across tasks.
type Limiter struct {
	ledger   ports.ExecutionLedger
	sessions ports.SessionRepository
	tasks    ports.TaskStore
}

// NewLimiter creates a concurrency limiter
func NewLimiter(ledger ports.ExecutionLedger, sessions ports.SessionRepository, tasks ports.TaskStore) *Limiter {
	return &Limiter{ledger: ledger, sessions: sessions, tasks: tasks}
}

// NextEligible returns the oldest pending ledger entry in the column that can
// be promoted right now, or nil when nothing is admissible. Entries whose
// task is already busy (serial-per-task rule) are passed over; the next
// waiting task's entry is considered instead.
func (l *Limiter) NextEligible(ctx context.Context, columnID string) (*domain.HookExecution, error) {
	pending, err := l.ledger.ListPendingInColumn(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	busy, err := l.activeTasks(ctx, columnID)
	if err != nil {
		return nil, err
	}

	column, err := l.tasks.GetColumn(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to load column: %w", err)
	}
	limit := column.Settings.MaxConcurrentTasks

	for _, entry := range pending {
		if busy[entry.TaskID] {
			// Only one hook entry executes at a time per task; this task's
			// entry promotes when its current work finishes
			continue
		}
		if limit != nil && len(busy) >= *limit {
			return nil, nil
		}
		return &entry, nil
	}
	return nil, nil
}

// activeTasks returns the set of task ids currently occupying slots in the
// column.
func (l *Limiter) activeTasks(ctx context.Context, columnID string) (map[string]bool, error) {
	busy := make(map[string]bool)

	running, err := l.ledger.RunningTaskIDsInColumn(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to count running hook executions: %w", err)
	}
	for _, id := range running {
		busy[id] = true
	}

	active, err := l.sessions.ActiveTaskIDsInColumn(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}
	for _, id := range active {
		busy[id] = true
	}
	return busy, nil
}
