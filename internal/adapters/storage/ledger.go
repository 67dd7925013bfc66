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

// LedgerRepository is the append-only hook execution ledger backed by SQLite.
type LedgerRepository struct {
	db *gorm.DB
}

var _ ports.ExecutionLedger = (*LedgerRepository)(nil)

// Append implements ports.ExecutionLedger
func (r *LedgerRepository) Append(ctx context.Context, entry domain.HookExecution) error {
	model := domainToExecutionModel(entry)
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
}

// transitionExecution performs a guarded status update. The WHERE clause on
// the current status enforces the state machine at the database level; zero
// rows affected means the transition was invalid or the entry is gone.
func (r *LedgerRepository) transitionExecution(ctx context.Context, id string, from []string, updates map[string]any) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&HookExecutionModel{}).
			Where("id = ? AND status IN ?", id, from).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("hook execution %s: %w", id, domain.ErrInvalidTransition)
		}
		return nil
	}, 3)
}

// MarkRunning implements ports.ExecutionLedger
func (r *LedgerRepository) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.transitionExecution(ctx, id,
		[]string{string(domain.ExecutionPending)},
		map[string]any{
			"status":     string(domain.ExecutionRunning),
			"started_at": &now,
		})
}

// MarkCompleted implements ports.ExecutionLedger
func (r *LedgerRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.transitionExecution(ctx, id,
		[]string{string(domain.ExecutionRunning)},
		map[string]any{
			"status":       string(domain.ExecutionCompleted),
			"completed_at": &now,
		})
}

// MarkFailed implements ports.ExecutionLedger
func (r *LedgerRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	now := time.Now().UTC()
	return r.transitionExecution(ctx, id,
		[]string{string(domain.ExecutionRunning)},
		map[string]any{
			"status":        string(domain.ExecutionFailed),
			"error_message": errorMessage,
			"completed_at":  &now,
		})
}

// MarkSkipped implements ports.ExecutionLedger
func (r *LedgerRepository) MarkSkipped(ctx context.Context, id string, reason domain.SkipReason) error {
	now := time.Now().UTC()
	return r.transitionExecution(ctx, id,
		[]string{string(domain.ExecutionPending)},
		map[string]any{
			"status":       string(domain.ExecutionSkipped),
			"skip_reason":  string(reason),
			"completed_at": &now,
		})
}

// MarkCancelled implements ports.ExecutionLedger
func (r *LedgerRepository) MarkCancelled(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.transitionExecution(ctx, id,
		[]string{string(domain.ExecutionPending)},
		map[string]any{
			"status":       string(domain.ExecutionCancelled),
			"completed_at": &now,
		})
}

// Get implements ports.ExecutionLedger
func (r *LedgerRepository) Get(ctx context.Context, id string) (*domain.HookExecution, error) {
	var model HookExecutionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("hook execution %s not found", id)
		}
		return nil, err
	}

	entry := executionModelToDomain(model)
	return &entry, nil
}

// ListByTask implements ports.ExecutionLedger
func (r *LedgerRepository) ListByTask(ctx context.Context, taskID string) ([]domain.HookExecution, error) {
	var models []HookExecutionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("task_id = ?", taskID).
			Order("queued_at, chain_position, id").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}
	return executionModelsToDomain(models), nil
}

// ListPendingByTask implements ports.ExecutionLedger
func (r *LedgerRepository) ListPendingByTask(ctx context.Context, taskID string) ([]domain.HookExecution, error) {
	var models []HookExecutionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("task_id = ? AND status = ?", taskID, string(domain.ExecutionPending)).
			Order("queued_at, chain_position, id").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}
	return executionModelsToDomain(models), nil
}

// ListPendingInColumn implements ports.ExecutionLedger. The join keeps only
// entries whose task is still placed in the column; FIFO by queued_at.
func (r *LedgerRepository) ListPendingInColumn(ctx context.Context, columnID string) ([]domain.HookExecution, error) {
	var models []HookExecutionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Joins("JOIN tasks ON tasks.id = hook_executions.task_id").
			Where("tasks.column_id = ? AND hook_executions.status = ?", columnID, string(domain.ExecutionPending)).
			Order("hook_executions.queued_at, hook_executions.chain_position, hook_executions.id").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}
	return executionModelsToDomain(models), nil
}

// RunningByTask implements ports.ExecutionLedger
func (r *LedgerRepository) RunningByTask(ctx context.Context, taskID string) (*domain.HookExecution, error) {
	var model HookExecutionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("task_id = ? AND status = ?", taskID, string(domain.ExecutionRunning)).
			First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	entry := executionModelToDomain(model)
	return &entry, nil
}

// RunningTaskIDsInColumn implements ports.ExecutionLedger
func (r *LedgerRepository) RunningTaskIDsInColumn(ctx context.Context, columnID string) ([]string, error) {
	var taskIDs []string
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Model(&HookExecutionModel{}).
			Joins("JOIN tasks ON tasks.id = hook_executions.task_id").
			Where("tasks.column_id = ? AND hook_executions.status = ?", columnID, string(domain.ExecutionRunning)).
			Distinct().
			Pluck("hook_executions.task_id", &taskIDs).Error
	}, 3)
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

// HasExecutedBinding implements ports.ExecutionLedger
func (r *LedgerRepository) HasExecutedBinding(ctx context.Context, taskID, columnHookID string) (bool, error) {
	var count int64
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Model(&HookExecutionModel{}).
			Where("task_id = ? AND column_hook_id = ?", taskID, columnHookID).
			Where("status = ? OR (status = ? AND skip_reason = ?)",
				string(domain.ExecutionCompleted),
				string(domain.ExecutionSkipped), string(domain.SkipReasonDisabled)).
			Count(&count).Error
	}, 3)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SkipPendingByTask implements ports.ExecutionLedger
func (r *LedgerRepository) SkipPendingByTask(ctx context.Context, taskID string, reason domain.SkipReason) ([]string, error) {
	var skipped []string
	now := time.Now().UTC()
	err := withRetry(func() error {
		skipped = skipped[:0]
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&HookExecutionModel{}).
				Where("task_id = ? AND status = ?", taskID, string(domain.ExecutionPending)).
				Pluck("id", &skipped).Error; err != nil {
				return err
			}
			if len(skipped) == 0 {
				return nil
			}
			return tx.Model(&HookExecutionModel{}).
				Where("id IN ?", skipped).
				Updates(map[string]any{
					"status":       string(domain.ExecutionSkipped),
					"skip_reason":  string(reason),
					"completed_at": &now,
				}).Error
		})
	}, 3)
	if err != nil {
		return nil, err
	}
	return skipped, nil
}

// ReconcileInterrupted implements ports.ExecutionLedger. Entries left running
// or pending by a previous process lifetime resolve to Skipped(server_restart).
func (r *LedgerRepository) ReconcileInterrupted(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	var affected int64
	err := withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&HookExecutionModel{}).
			Where("status IN ?", []string{string(domain.ExecutionPending), string(domain.ExecutionRunning)}).
			Updates(map[string]any{
				"status":       string(domain.ExecutionSkipped),
				"skip_reason":  string(domain.SkipReasonServerRestart),
				"completed_at": &now,
			})
		affected = result.RowsAffected
		return result.Error
	}, 3)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logging.Logger.Info("Reconciled interrupted hook executions", "count", affected)
	}
	return int(affected), nil
}

func executionModelsToDomain(models []HookExecutionModel) []domain.HookExecution {
	entries := make([]domain.HookExecution, len(models))
	for i, m := range models {
		entries[i] = executionModelToDomain(m)
	}
	return entries
}
