package ports

import (
	"context"

	"quadro/internal/domain"
)

// TaskStore is the engine's window onto the board application's task
// persistence. The engine reads column placement and writes status-summary
// fields; it is never the source of truth for board data.
type TaskStore interface {
	// GetTask returns the engine's view of a board card
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// GetColumn returns a column with its engine-relevant settings
	GetColumn(ctx context.Context, id string) (*domain.Column, error)

	// UpsertColumn writes a column row; the board application syncs column
	// settings through this.
	UpsertColumn(ctx context.Context, column domain.Column) error

	// CreateTask materializes a new card (used by the periodic scheduler).
	// Returns the created task.
	CreateTask(ctx context.Context, boardID, columnID, title, description string) (*domain.Task, error)

	// UpdateAgentStatus writes back the task's visible agent status fields
	UpdateAgentStatus(ctx context.Context, taskID string, status domain.AgentStatus, statusMessage, errorMessage string, inProgress bool) error

	// UpdateWorktree records the task's worktree path and branch
	UpdateWorktree(ctx context.Context, taskID, path, branch string) error
}
