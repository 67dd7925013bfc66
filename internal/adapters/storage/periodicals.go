package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"quadro/internal/domain"
	"quadro/internal/ports"
)

// PeriodicalRepository persists cron-scheduled task templates in SQLite.
type PeriodicalRepository struct {
	db *gorm.DB
}

var _ ports.PeriodicalTaskRepository = (*PeriodicalRepository)(nil)

// Create implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) Create(ctx context.Context, task domain.PeriodicalTask) error {
	model := domainToPeriodicalModel(task)
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
}

// Delete implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) Delete(ctx context.Context, id string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&PeriodicalTaskModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTaskNotFound
		}
		return nil
	}, 3)
}

// Get implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) Get(ctx context.Context, id string) (*domain.PeriodicalTask, error) {
	var model PeriodicalTaskModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get periodical task: %w", err)
	}

	task := periodicalModelToDomain(model)
	return &task, nil
}

// List implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) List(ctx context.Context, boardID string) ([]domain.PeriodicalTask, error) {
	var models []PeriodicalTaskModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("board_id = ?", boardID).
			Order("created_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to list periodical tasks: %w", err)
	}

	tasks := make([]domain.PeriodicalTask, len(models))
	for i, m := range models {
		tasks[i] = periodicalModelToDomain(m)
	}
	return tasks, nil
}

// ListDue implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) ListDue(ctx context.Context, now time.Time) ([]domain.PeriodicalTask, error) {
	var models []PeriodicalTaskModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("enabled = ? AND next_execution_at <= ?", true, now).
			Order("next_execution_at ASC").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to list due periodical tasks: %w", err)
	}

	tasks := make([]domain.PeriodicalTask, len(models))
	for i, m := range models {
		tasks[i] = periodicalModelToDomain(m)
	}
	return tasks, nil
}

// RecordExecution implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) RecordExecution(ctx context.Context, id string, executedAt, next time.Time) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&PeriodicalTaskModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"execution_count":   gorm.Expr("execution_count + 1"),
				"last_executed_at":  executedAt,
				"next_execution_at": next,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTaskNotFound
		}
		return nil
	}, 3)
}

// SetEnabled implements ports.PeriodicalTaskRepository
func (r *PeriodicalRepository) SetEnabled(ctx context.Context, id string, enabled bool, next time.Time) error {
	return withRetry(func() error {
		updates := map[string]any{"enabled": enabled}
		if enabled {
			updates["next_execution_at"] = next
		}
		result := r.db.WithContext(ctx).Model(&PeriodicalTaskModel{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTaskNotFound
		}
		return nil
	}, 3)
}
