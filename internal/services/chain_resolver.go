package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

// ChainResolver turns a task's arrival in a column into an ordered queue of
// pending ledger entries. Hook definitions are snapshotted into each entry so
// later edits to the catalog do not rewrite history.
type ChainResolver struct {
	events ports.EventSink
	hooks  ports.HookRepository
	ledger ports.ExecutionLedger
	tasks  ports.TaskStore
}

// NewChainResolver creates a chain resolver
func NewChainResolver(
	hooks ports.HookRepository,
	ledger ports.ExecutionLedger,
	tasks ports.TaskStore,
	events ports.EventSink,
) *ChainResolver {
	return &ChainResolver{
		events: events,
		hooks:  hooks,
		ledger: ledger,
		tasks:  tasks,
	}
}

// Resolve builds the pending queue for a task that entered a column. Any
// pending entries from a previous column are skipped first: column change
// always wins over a stale hook queue.
func (r *ChainResolver) Resolve(ctx context.Context, taskID, columnID string) ([]domain.HookExecution, error) {
	if _, err := r.tasks.GetTask(ctx, taskID); err != nil {
		return nil, err
	}

	skipped, err := r.ledger.SkipPendingByTask(ctx, taskID, domain.SkipReasonColumnChange)
	if err != nil {
		return nil, fmt.Errorf("failed to skip stale queue: %w", err)
	}
	for _, id := range skipped {
		r.events.Publish(domain.NewTaskEvent(domain.EventHookSkipped, taskID, map[string]any{
			"execution_id": id,
			"reason":       string(domain.SkipReasonColumnChange),
		}))
	}

	column, err := r.tasks.GetColumn(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to load column: %w", err)
	}

	bindings, err := r.hooks.ListBindings(ctx, columnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	if !column.Settings.HooksEnabled {
		return r.recordDisabledSkip(ctx, taskID, bindings[0])
	}

	now := time.Now().UTC()
	var queue []domain.HookExecution
	for _, binding := range bindings {
		if binding.ExecuteOnce {
			executed, err := r.ledger.HasExecutedBinding(ctx, taskID, binding.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check execute-once history: %w", err)
			}
			if executed {
				logging.Logger.Debug("Skipping execute-once binding",
					"binding_id", binding.ID, "task_id", taskID)
				continue
			}
		}

		hook, err := r.hooks.GetHook(ctx, binding.HookID)
		if err != nil {
			return nil, fmt.Errorf("failed to load hook %s: %w", binding.HookID, err)
		}

		entry := domain.HookExecution{
			ChainPosition:    binding.Position,
			ColumnHookID:     binding.ID,
			CommandSnapshot:  hook.Command,
			HookKindSnapshot: hook.Kind,
			HookNameSnapshot: hook.Name,
			ID:               uuid.NewString(),
			PromptSnapshot:   hook.AgentPrompt,
			QueuedAt:         now,
			Status:           domain.ExecutionPending,
			TaskID:           taskID,
			Transparent:      binding.Transparent,
		}
		if err := r.ledger.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to append ledger entry: %w", err)
		}
		queue = append(queue, entry)

		r.events.Publish(domain.NewTaskEvent(domain.EventHookQueued, taskID, map[string]any{
			"execution_id": entry.ID,
			"hook_name":    entry.HookNameSnapshot,
			"hook_kind":    string(entry.HookKindSnapshot),
		}))
	}

	logging.Logger.Info("Resolved column hook chain",
		"task_id", taskID, "column_id", columnID, "queued", len(queue))
	return queue, nil
}

// recordDisabledSkip writes the single visibility entry for a column whose
// hooks are disabled. The entry references the first binding in position
// order, which also satisfies that binding's execute-once check.
func (r *ChainResolver) recordDisabledSkip(ctx context.Context, taskID string, binding domain.ColumnHookBinding) ([]domain.HookExecution, error) {
	hook, err := r.hooks.GetHook(ctx, binding.HookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load hook %s: %w", binding.HookID, err)
	}

	now := time.Now().UTC()
	entry := domain.HookExecution{
		ChainPosition:    binding.Position,
		ColumnHookID:     binding.ID,
		CommandSnapshot:  hook.Command,
		CompletedAt:      &now,
		HookKindSnapshot: hook.Kind,
		HookNameSnapshot: hook.Name,
		ID:               uuid.NewString(),
		PromptSnapshot:   hook.AgentPrompt,
		QueuedAt:         now,
		SkipReason:       domain.SkipReasonDisabled,
		Status:           domain.ExecutionSkipped,
		TaskID:           taskID,
		Transparent:      binding.Transparent,
	}
	if err := r.ledger.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	r.events.Publish(domain.NewTaskEvent(domain.EventHookSkipped, taskID, map[string]any{
		"execution_id": entry.ID,
		"reason":       string(domain.SkipReasonDisabled),
	}))
	return nil, nil
}
