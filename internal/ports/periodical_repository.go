package ports

import (
	"context"
	"time"

	"quadro/internal/domain"
)

// PeriodicalTaskRepository persists cron-scheduled task templates
type PeriodicalTaskRepository interface {
	Create(ctx context.Context, task domain.PeriodicalTask) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.PeriodicalTask, error)
	List(ctx context.Context, boardID string) ([]domain.PeriodicalTask, error)

	// ListDue returns enabled rows with next_execution_at <= now
	ListDue(ctx context.Context, now time.Time) ([]domain.PeriodicalTask, error)

	// RecordExecution increments execution_count and sets last/next execution
	// times after a firing.
	RecordExecution(ctx context.Context, id string, executedAt, next time.Time) error

	// SetEnabled toggles the row; enabling recomputes next_execution_at
	SetEnabled(ctx context.Context, id string, enabled bool, next time.Time) error
}
