package ports

import (
	"context"

	"quadro/internal/domain"
)

// SessionRepository persists executor sessions
type SessionRepository interface {
	// Create records a new session (normally Pending)
	Create(ctx context.Context, session domain.ExecutorSession) error

	// MarkRunning transitions a pending session to running
	MarkRunning(ctx context.Context, id string) error

	// MarkCompleted finishes a session with exit code 0
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed finishes a session with a nonzero exit code or spawn error
	MarkFailed(ctx context.Context, id string, exitCode int, errorMessage string) error

	// MarkStopped records an externally requested stop
	MarkStopped(ctx context.Context, id string, reason string) error

	// Get returns one session by id
	Get(ctx context.Context, id string) (*domain.ExecutorSession, error)

	// ActiveByTask returns the task's pending or running session, or nil
	ActiveByTask(ctx context.Context, taskID string) (*domain.ExecutorSession, error)

	// ListByTask returns all sessions for a task, oldest first
	ListByTask(ctx context.Context, taskID string) ([]domain.ExecutorSession, error)

	// ActiveTaskIDsInColumn returns ids of tasks in the column that hold a
	// pending or running session.
	ActiveTaskIDsInColumn(ctx context.Context, columnID string) ([]string, error)

	// ReconcileInterrupted fails sessions left active by a previous process
	// lifetime. Returns the number reconciled.
	ReconcileInterrupted(ctx context.Context) (int, error)
}
