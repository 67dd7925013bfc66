package ports

import (
	"context"

	"quadro/internal/domain"
)

// ExecutionLedger is the append-only record of hook invocations. Status
// transitions are persisted as updates to the latest entry, validated against
// the domain state machine; terminal entries are never mutated again.
type ExecutionLedger interface {
	// Append records a new ledger entry (normally Pending)
	Append(ctx context.Context, entry domain.HookExecution) error

	// MarkRunning promotes a pending entry
	MarkRunning(ctx context.Context, id string) error

	// MarkCompleted finishes a running entry successfully
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed finishes a running entry with a captured diagnostic
	MarkFailed(ctx context.Context, id string, errorMessage string) error

	// MarkSkipped resolves a pending entry without running it
	MarkSkipped(ctx context.Context, id string, reason domain.SkipReason) error

	// MarkCancelled cancels a pending entry
	MarkCancelled(ctx context.Context, id string) error

	// Get returns one entry by id
	Get(ctx context.Context, id string) (*domain.HookExecution, error)

	// ListByTask returns all entries for a task, oldest first
	ListByTask(ctx context.Context, taskID string) ([]domain.HookExecution, error)

	// ListPendingByTask returns a task's pending entries in queue order
	ListPendingByTask(ctx context.Context, taskID string) ([]domain.HookExecution, error)

	// ListPendingInColumn returns pending entries for tasks currently in the
	// column, FIFO by queued_at across tasks.
	ListPendingInColumn(ctx context.Context, columnID string) ([]domain.HookExecution, error)

	// RunningByTask returns the task's running entry, or nil
	RunningByTask(ctx context.Context, taskID string) (*domain.HookExecution, error)

	// RunningTaskIDsInColumn returns ids of tasks in the column that hold a
	// running ledger entry.
	RunningTaskIDsInColumn(ctx context.Context, columnID string) ([]string, error)

	// HasExecutedBinding reports whether the task already has an entry for the
	// binding that counts as executed (execute-once check).
	HasExecutedBinding(ctx context.Context, taskID, columnHookID string) (bool, error)

	// SkipPendingByTask marks all of a task's pending entries with the reason.
	// Returns the ids that were skipped.
	SkipPendingByTask(ctx context.Context, taskID string, reason domain.SkipReason) ([]string, error)

	// ReconcileInterrupted resolves entries left running or pending by a
	// previous process lifetime to Skipped(server_restart).
	ReconcileInterrupted(ctx context.Context) (int, error)
}
