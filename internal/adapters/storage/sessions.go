package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

// SessionRepository persists executor session records in SQLite.
type SessionRepository struct {
	db *gorm.DB
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

// Create implements ports.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, session domain.ExecutorSession) error {
	model := domainToSessionModel(session)
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
}

// transitionSession performs a guarded session status update
func (r *SessionRepository) transitionSession(ctx context.Context, id string, from []string, updates map[string]any) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&ExecutorSessionModel{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("executor session %s: %w", id, domain.ErrInvalidTransition)
		}
		return nil
	}, 3)
}

// MarkRunning implements ports.SessionRepository
func (r *SessionRepository) MarkRunning(ctx context.Context, id string) error {
	return r.transitionSession(ctx, id,
		[]string{string(domain.SessionPending)},
		map[string]any{"status": string(domain.SessionRunning)})
}

// MarkCompleted implements ports.SessionRepository
func (r *SessionRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	zero := 0
	return r.transitionSession(ctx, id,
		[]string{string(domain.SessionPending), string(domain.SessionRunning)},
		map[string]any{
			"status":       string(domain.SessionCompleted),
			"exit_code":    &zero,
			"completed_at": &now,
		})
}

// MarkFailed implements ports.SessionRepository
func (r *SessionRepository) MarkFailed(ctx context.Context, id string, exitCode int, errorMessage string) error {
	now := time.Now().UTC()
	return r.transitionSession(ctx, id,
		[]string{string(domain.SessionPending), string(domain.SessionRunning)},
		map[string]any{
			"status":        string(domain.SessionFailed),
			"exit_code":     &exitCode,
			"error_message": errorMessage,
			"completed_at":  &now,
		})
}

// MarkStopped implements ports.SessionRepository
func (r *SessionRepository) MarkStopped(ctx context.Context, id string, reason string) error {
	now := time.Now().UTC()
	return r.transitionSession(ctx, id,
		[]string{string(domain.SessionPending), string(domain.SessionRunning)},
		map[string]any{
			"status":       string(domain.SessionStopped),
			"stop_reason":  reason,
			"completed_at": &now,
		})
}

// Get implements ports.SessionRepository
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.ExecutorSession, error) {
	var model ExecutorSessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("executor session %s not found", id)
		}
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// ActiveByTask implements ports.SessionRepository
func (r *SessionRepository) ActiveByTask(ctx context.Context, taskID string) (*domain.ExecutorSession, error) {
	var model ExecutorSessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("task_id = ? AND status IN ?", taskID,
				[]string{string(domain.SessionPending), string(domain.SessionRunning)}).
			First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// ListByTask implements ports.SessionRepository
func (r *SessionRepository) ListByTask(ctx context.Context, taskID string) ([]domain.ExecutorSession, error) {
	var models []ExecutorSessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("task_id = ?", taskID).
			Order("started_at, id").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.ExecutorSession, len(models))
	for i, m := range models {
		sessions[i] = sessionModelToDomain(m)
	}
	return sessions, nil
}

// ActiveTaskIDsInColumn implements ports.SessionRepository
func (r *SessionRepository) ActiveTaskIDsInColumn(ctx context.Context, columnID string) ([]string, error) {
	var taskIDs []string
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Model(&ExecutorSessionModel{}).
			Joins("JOIN tasks ON tasks.id = executor_sessions.task_id").
			Where("tasks.column_id = ? AND executor_sessions.status IN ?", columnID,
				[]string{string(domain.SessionPending), string(domain.SessionRunning)}).
			Distinct().
			Pluck("executor_sessions.task_id", &taskIDs).Error
	}, 3)
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

// ReconcileInterrupted implements ports.SessionRepository. Sessions left
// active by a previous process lifetime are failed; the subprocess is gone.
func (r *SessionRepository) ReconcileInterrupted(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var affected int64
	err := withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&ExecutorSessionModel{}).
			Where("status IN ?", []string{string(domain.SessionPending), string(domain.SessionRunning)}).
			Updates(map[string]any{
				"status":        string(domain.SessionFailed),
				"error_message": "interrupted by server restart",
				"completed_at":  &now,
			})
		affected = result.RowsAffected
		return result.Error
	}, 3)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logging.Logger.Info("Reconciled interrupted executor sessions", "count", affected)
	}
	return int(affected), nil
}
