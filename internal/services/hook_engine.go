package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

const scriptOutputTailBytes = 2048

// HookEngine drives the hook lifecycle: it resolves column chains when tasks
// move, admits pending ledger entries through the concurrency limiter, runs
// script hooks as subprocesses and agent hooks as executor sessions, and
// re-pumps the column whenever an execution reaches a terminal state.
type HookEngine struct {
	events        ports.EventSink
	hooks         ports.HookRepository
	ledger        ports.ExecutionLedger
	limiter       *Limiter
	resolver      *ChainResolver
	scriptTimeout time.Duration
	sessions      *SessionManager
	sound         ports.SoundPlayer
	soundsEnabled bool
	tasks         ports.TaskStore

	// mu serializes admission so two pumps cannot promote past the limit
	mu sync.Mutex
}

// NewHookEngine creates a hook engine
func NewHookEngine(
	resolver *ChainResolver,
	limiter *Limiter,
	hooks ports.HookRepository,
	ledger ports.ExecutionLedger,
	sessions *SessionManager,
	tasks ports.TaskStore,
	events ports.EventSink,
	sound ports.SoundPlayer,
	soundsEnabled bool,
	scriptTimeout time.Duration,
) *HookEngine {
	e := &HookEngine{
		events:        events,
		hooks:         hooks,
		ledger:        ledger,
		limiter:       limiter,
		resolver:      resolver,
		scriptTimeout: scriptTimeout,
		sessions:      sessions,
		sound:         sound,
		soundsEnabled: soundsEnabled,
		tasks:         tasks,
	}
	// Chat sessions hold column slots too; every terminal session is a
	// completion event for its column.
	sessions.NotifyTerminal(e.sessionFinished)
	return e
}

// sessionFinished pumps the column of a task whose executor session reached a
// terminal state, so entries waiting on the freed slot can be admitted.
func (e *HookEngine) sessionFinished(session domain.ExecutorSession) {
	ctx := context.Background()
	task, err := e.tasks.GetTask(ctx, session.TaskID)
	if err != nil {
		logging.Logger.Debug("No column to pump for finished session",
			"session_id", session.ID, "task_id", session.TaskID, "error", err)
		return
	}
	go e.Pump(ctx, task.ColumnID)
}

// ReconcileOnStartup resolves state left behind by an unclean shutdown.
// Hook entries stuck in pending or running become skipped, executor sessions
// become failed; nothing is re-run automatically.
func (e *HookEngine) ReconcileOnStartup(ctx context.Context) error {
	var executions, sessions int

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := e.ledger.ReconcileInterrupted(ctx)
		if err != nil {
			return fmt.Errorf("failed to reconcile hook executions: %w", err)
		}
		executions = n
		return nil
	})
	g.Go(func() error {
		n, err := e.sessions.sessions.ReconcileInterrupted(ctx)
		if err != nil {
			return fmt.Errorf("failed to reconcile executor sessions: %w", err)
		}
		sessions = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if executions > 0 || sessions > 0 {
		logging.Logger.Info("Reconciled interrupted work after restart",
			"hook_executions", executions, "executor_sessions", sessions)
	}
	return nil
}

// TaskMoved is the entry point for column changes: it rebuilds the task's
// pending queue for the new column and pumps admission.
func (e *HookEngine) TaskMoved(ctx context.Context, taskID, columnID string) error {
	if _, err := e.resolver.Resolve(ctx, taskID, columnID); err != nil {
		return err
	}
	e.Pump(ctx, columnID)
	return nil
}

// StopTask cancels the task's agent work: pending hook entries are skipped
// and the active executor session is terminated. A stop with no running
// session is rejected before anything is mutated. The session manager clears
// the message queue when the stop lands.
func (e *HookEngine) StopTask(ctx context.Context, taskID string) error {
	if !e.sessions.IsActive(taskID) {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrExecutorNotRunning)
	}

	skipped, err := e.ledger.SkipPendingByTask(ctx, taskID, domain.SkipReasonUserCancelled)
	if err != nil {
		return fmt.Errorf("failed to skip pending hooks: %w", err)
	}
	for _, id := range skipped {
		e.events.Publish(domain.NewTaskEvent(domain.EventHookSkipped, taskID, map[string]any{
			"execution_id": id,
			"reason":       string(domain.SkipReasonUserCancelled),
		}))
	}
	return e.sessions.Stop(ctx, taskID, StopReasonUserCancelled)
}

// Pump admits as many pending entries as the column allows right now. Each
// promoted entry runs asynchronously; its terminal handler pumps again.
func (e *HookEngine) Pump(ctx context.Context, columnID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		entry, err := e.limiter.NextEligible(ctx, columnID)
		if err != nil {
			logging.Logger.Error("Failed to evaluate admission", "column_id", columnID, "error", err)
			return
		}
		if entry == nil {
			return
		}
		if err := e.dispatch(ctx, *entry, columnID); err != nil {
			logging.Logger.Error("Failed to dispatch hook execution",
				"execution_id", entry.ID, "error", err)
			return
		}
	}
}

// dispatch promotes one pending entry to running and launches it
func (e *HookEngine) dispatch(ctx context.Context, entry domain.HookExecution, columnID string) error {
	if err := e.ledger.MarkRunning(ctx, entry.ID); err != nil {
		return err
	}
	e.events.Publish(domain.NewTaskEvent(domain.EventHookStarted, entry.TaskID, map[string]any{
		"execution_id": entry.ID,
		"hook_name":    entry.HookNameSnapshot,
		"hook_kind":    string(entry.HookKindSnapshot),
	}))

	task, err := e.tasks.GetTask(ctx, entry.TaskID)
	if err != nil {
		e.finish(context.Background(), entry, nil, columnID, "", err)
		return nil
	}

	// The binding may have been deleted since queue time; settings and the
	// live hook row are best-effort.
	binding, err := e.hooks.GetBinding(ctx, entry.ColumnHookID)
	if err != nil {
		logging.Logger.Debug("Binding gone, running from snapshot alone",
			"binding_id", entry.ColumnHookID, "execution_id", entry.ID)
		binding = nil
	}

	switch entry.HookKindSnapshot {
	case domain.HookKindScript:
		go e.runScript(entry, binding, task, columnID)
	case domain.HookKindAgent:
		// Spawning an executor can be slow; never hold the pump mutex for it
		go e.runAgent(context.Background(), entry, binding, task, columnID)
	default:
		e.finish(context.Background(), entry, binding, columnID, task.BoardID,
			fmt.Errorf("unknown hook kind %q", entry.HookKindSnapshot))
	}
	return nil
}

// runScript executes a script hook with the configured timeout. Exit code
// zero completes the entry; anything else fails it with the output tail.
func (e *HookEngine) runScript(entry domain.HookExecution, binding *domain.ColumnHookBinding, task *domain.Task, columnID string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.scriptTimeout)
	defer cancel()

	workingDir := task.WorktreePath
	if workingDir == "" {
		workingDir = task.WorkingDirectory
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", entry.CommandSnapshot)
	cmd.Dir = workingDir
	cmd.Env = append(os.Environ(),
		"QUADRO_BOARD_ID="+task.BoardID,
		"QUADRO_COLUMN_ID="+columnID,
		"QUADRO_TASK_ID="+task.ID,
		"QUADRO_TASK_TITLE="+task.Title,
	)

	output, err := cmd.CombinedOutput()
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		err = fmt.Errorf("script timed out after %s: %s", e.scriptTimeout, tailBytes(output, scriptOutputTailBytes))
	case err != nil:
		err = fmt.Errorf("script failed: %w: %s", err, tailBytes(output, scriptOutputTailBytes))
	}
	e.finish(context.Background(), entry, binding, columnID, task.BoardID, err)
}

// runAgent launches an executor session for an agent hook; the entry's
// terminal state tracks the session's one to one.
func (e *HookEngine) runAgent(ctx context.Context, entry domain.HookExecution, binding *domain.ColumnHookBinding, task *domain.Task, columnID string) {
	executorType := ""
	autoApprove := false
	if binding != nil {
		if hook, err := e.hooks.GetHook(ctx, binding.HookID); err == nil {
			executorType = hook.AgentExecutor
			autoApprove = hook.AutoApprove
		}
	}

	_, err := e.sessions.Start(ctx, StartParams{
		AutoApprove:  autoApprove,
		ExecutorType: executorType,
		Prompt:       entry.PromptSnapshot,
		TaskID:       entry.TaskID,
		Transparent:  entry.Transparent,
		OnTerminal: func(session domain.ExecutorSession) {
			var sessionErr error
			switch session.Status {
			case domain.SessionCompleted:
				sessionErr = nil
			case domain.SessionStopped:
				sessionErr = fmt.Errorf("executor stopped: %s", session.StopReason)
			default:
				if session.ErrorMessage != "" {
					sessionErr = fmt.Errorf("executor session failed: %s", session.ErrorMessage)
				} else {
					exitCode := -1
					if session.ExitCode != nil {
						exitCode = *session.ExitCode
					}
					sessionErr = fmt.Errorf("executor session failed with exit code %d", exitCode)
				}
			}
			e.finish(context.Background(), entry, binding, columnID, task.BoardID, sessionErr)
		},
	})
	if err != nil {
		e.finish(context.Background(), entry, binding, columnID, task.BoardID, err)
	}
}

// finish records the terminal state, emits events and client actions, and
// pumps the column again so waiting entries can be admitted.
func (e *HookEngine) finish(ctx context.Context, entry domain.HookExecution, binding *domain.ColumnHookBinding, columnID, boardID string, runErr error) {
	if runErr == nil {
		if err := e.ledger.MarkCompleted(ctx, entry.ID); err != nil {
			logging.Logger.Error("Failed to mark execution completed", "execution_id", entry.ID, "error", err)
		}
		e.events.Publish(domain.NewTaskEvent(domain.EventHookCompleted, entry.TaskID, map[string]any{
			"execution_id": entry.ID,
			"hook_name":    entry.HookNameSnapshot,
		}))
	} else {
		if err := e.ledger.MarkFailed(ctx, entry.ID, runErr.Error()); err != nil {
			logging.Logger.Error("Failed to mark execution failed", "execution_id", entry.ID, "error", err)
		}
		e.events.Publish(domain.NewTaskEvent(domain.EventHookFailed, entry.TaskID, map[string]any{
			"execution_id": entry.ID,
			"hook_name":    entry.HookNameSnapshot,
			"error":        runErr.Error(),
		}))
		logging.Logger.Warn("Hook execution failed",
			"execution_id", entry.ID, "hook_name", entry.HookNameSnapshot, "error", runErr)
	}

	if binding != nil {
		e.applyBindingActions(entry, binding, boardID, runErr == nil)
	}

	go e.Pump(context.Background(), columnID)
}

// applyBindingActions handles per-binding settings after a run: notification
// sounds on any terminal state, the move-to-column client action only on
// success. Column placement stays with the board client; the engine only
// suggests the move.
func (e *HookEngine) applyBindingActions(entry domain.HookExecution, binding *domain.ColumnHookBinding, boardID string, succeeded bool) {
	if binding.Settings.Sound != nil {
		sound := *binding.Settings.Sound
		e.events.Publish(domain.NewPlaySoundAction(boardID, sound))
		if e.soundsEnabled {
			if err := e.sound.PlaySoundForEvent(sound); err != nil {
				logging.Logger.Debug("Failed to play hook sound", "sound", sound, "error", err)
			}
		}
	}

	if succeeded && binding.Settings.TargetColumn != nil {
		e.events.Publish(domain.NewBoardEvent(domain.EventClientAction, boardID, map[string]any{
			"type":          "move-task",
			"task_id":       entry.TaskID,
			"target_column": *binding.Settings.TargetColumn,
		}))
	}
}

// tailBytes returns the last n bytes of output as a string
func tailBytes(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
