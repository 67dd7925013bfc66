package ports

import (
	"context"

	"quadro/internal/domain"
)

// MessageRepository persists per-task chat messages. Append assigns the
// message's Sequence from a per-task monotonic counter; sequences are never
// reused, even across restarts.
type MessageRepository interface {
	// Append stores a message and returns it with Sequence and ID assigned
	Append(ctx context.Context, message domain.Message) (*domain.Message, error)

	// ListByTask returns a task's messages ordered by sequence
	ListByTask(ctx context.Context, taskID string) ([]domain.Message, error)

	// UpdateStatus updates a message's dispatch status
	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error
}
