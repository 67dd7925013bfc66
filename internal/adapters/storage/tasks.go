package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quadro/internal/domain"
	"quadro/internal/ports"
)

// TaskRepository is the engine's window onto the board's tasks and columns
// tables. Only agent-status and worktree fields are written from here.
type TaskRepository struct {
	db *gorm.DB
}

var _ ports.TaskStore = (*TaskRepository)(nil)

// GetTask implements ports.TaskStore
func (r *TaskRepository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var model TaskModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	task := taskModelToDomain(model)
	return &task, nil
}

// GetColumn implements ports.TaskStore
func (r *TaskRepository) GetColumn(ctx context.Context, id string) (*domain.Column, error) {
	var model ColumnModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get column: %w", err)
	}

	column := columnModelToDomain(model)
	return &column, nil
}

// UpsertColumn implements ports.TaskStore
func (r *TaskRepository) UpsertColumn(ctx context.Context, column domain.Column) error {
	model := ColumnModel{
		BoardID:            column.BoardID,
		HooksEnabled:       column.Settings.HooksEnabled,
		ID:                 column.ID,
		MaxConcurrentTasks: column.Settings.MaxConcurrentTasks,
		Name:               column.Name,
	}
	return withRetry(func() error {
		return r.db.WithContext(ctx).Save(&model).Error
	}, 3)
}

// CreateTask implements ports.TaskStore
func (r *TaskRepository) CreateTask(ctx context.Context, boardID, columnID, title, description string) (*domain.Task, error) {
	model := TaskModel{
		AgentStatus: string(domain.AgentIdle),
		BoardID:     boardID,
		ColumnID:    columnID,
		Description: description,
		ID:          uuid.NewString(),
		Title:       title,
	}
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	task := taskModelToDomain(model)
	return &task, nil
}

// UpdateAgentStatus implements ports.TaskStore
func (r *TaskRepository) UpdateAgentStatus(ctx context.Context, taskID string, status domain.AgentStatus, statusMessage, errorMessage string, inProgress bool) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&TaskModel{}).
			Where("id = ?", taskID).
			Updates(map[string]any{
				"agent_status":         string(status),
				"agent_status_message": statusMessage,
				"error_message":        errorMessage,
				"in_progress":          inProgress,
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

// UpdateWorktree implements ports.TaskStore
func (r *TaskRepository) UpdateWorktree(ctx context.Context, taskID, path, branch string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&TaskModel{}).
			Where("id = ?", taskID).
			Updates(map[string]any{
				"worktree_branch": branch,
				"worktree_path":   path,
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
