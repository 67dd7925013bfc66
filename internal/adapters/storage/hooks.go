package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"quadro/internal/domain"
	"quadro/internal/ports"
)

// HookRepository persists hooks and column bindings in SQLite.
type HookRepository struct {
	db *gorm.DB
}

var _ ports.HookRepository = (*HookRepository)(nil)

// GetHook implements ports.HookReader
func (r *HookRepository) GetHook(ctx context.Context, id string) (*domain.Hook, error) {
	var model HookModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHookNotFound
		}
		return nil, err
	}

	hook := hookModelToDomain(model)
	return &hook, nil
}

// ListHooks implements ports.HookReader
func (r *HookRepository) ListHooks(ctx context.Context, boardID string) ([]domain.Hook, error) {
	var models []HookModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("board_id = ? OR system = ?", boardID, true).
			Order("name").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	hooks := make([]domain.Hook, len(models))
	for i, m := range models {
		hooks[i] = hookModelToDomain(m)
	}
	return hooks, nil
}

// CreateHook implements ports.HookWriter
func (r *HookRepository) CreateHook(ctx context.Context, hook domain.Hook) error {
	model := domainToHookModel(hook)
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
}

// UpdateHook implements ports.HookWriter. System hooks are immutable.
func (r *HookRepository) UpdateHook(ctx context.Context, hook domain.Hook) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&HookModel{}).
			Where("id = ? AND system = ?", hook.ID, false).
			Updates(map[string]any{
				"agent_executor": hook.AgentExecutor,
				"agent_prompt":   hook.AgentPrompt,
				"auto_approve":   hook.AutoApprove,
				"command":        hook.Command,
				"kind":           string(hook.Kind),
				"name":           hook.Name,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("hook %s not found or is a system hook: %w", hook.ID, domain.ErrHookNotFound)
		}
		return nil
	}, 3)
}

// DeleteHook implements ports.HookWriter
func (r *HookRepository) DeleteHook(ctx context.Context, id string) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("hook_id = ?", id).Delete(&ColumnHookModel{}).Error; err != nil {
				return err
			}
			return tx.Where("id = ? AND system = ?", id, false).Delete(&HookModel{}).Error
		})
	}, 3)
}

// GetBinding implements ports.BindingReader
func (r *HookRepository) GetBinding(ctx context.Context, id string) (*domain.ColumnHookBinding, error) {
	var model ColumnHookModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, 3)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("binding %s not found", id)
		}
		return nil, err
	}

	binding := bindingModelToDomain(model)
	return &binding, nil
}

// ListBindings implements ports.BindingReader. Order is position ascending,
// ties broken by binding id.
func (r *HookRepository) ListBindings(ctx context.Context, columnID string) ([]domain.ColumnHookBinding, error) {
	var models []ColumnHookModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).
			Where("column_id = ?", columnID).
			Order("position, id").
			Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	bindings := make([]domain.ColumnHookBinding, len(models))
	for i, m := range models {
		bindings[i] = bindingModelToDomain(m)
	}
	return bindings, nil
}

// CreateBinding implements ports.BindingWriter
func (r *HookRepository) CreateBinding(ctx context.Context, binding domain.ColumnHookBinding) error {
	model := domainToBindingModel(binding)
	return withRetry(func() error {
		return r.db.WithContext(ctx).Create(&model).Error
	}, 3)
}

// UpdateBinding implements ports.BindingWriter
func (r *HookRepository) UpdateBinding(ctx context.Context, binding domain.ColumnHookBinding) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Model(&ColumnHookModel{}).
			Where("id = ?", binding.ID).
			Updates(map[string]any{
				"execute_once":  binding.ExecuteOnce,
				"position":      binding.Position,
				"removable":     binding.Removable,
				"sound":         binding.Settings.Sound,
				"target_column": binding.Settings.TargetColumn,
				"transparent":   binding.Transparent,
			}).Error
	}, 3)
}

// DeleteBinding implements ports.BindingWriter. Non-removable bindings stay.
func (r *HookRepository) DeleteBinding(ctx context.Context, id string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).
			Where("id = ? AND removable = ?", id, true).
			Delete(&ColumnHookModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("binding %s not found or not removable", id)
		}
		return nil
	}, 3)
}
