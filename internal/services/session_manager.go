package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quadro/internal/adapters/claude"
	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

// StopReasonUserCancelled marks a stop requested by the user. It is the one
// stop reason that clears the task's message queue instead of draining it.
const StopReasonUserCancelled = "user_cancelled"

// StartParams describes one executor session start request
type StartParams struct {
	AutoApprove  bool
	ExecutorType string
	Images       []string
	OnTerminal   func(session domain.ExecutorSession)
	Prompt       string
	TaskID       string
	Transparent  bool
}

// activeSession is the in-memory supervision record for a running subprocess
type activeSession struct {
	handle      ports.ExecHandle
	id          string
	stopReason  string
	stopped     bool
	transparent bool
}

// SessionManager supervises executor subprocesses, one per task at most. It
// owns the session state machine, classifies output, persists the chat
// transcript, and drains the message queue on terminal transitions.
type SessionManager struct {
	defaultExecutor string
	events          ports.EventSink
	messages        ports.MessageRepository
	parser          *claude.StreamParser
	queue           *MessageQueue
	runner          ports.ExecutorRunner
	sessions        ports.SessionRepository
	tasks           ports.TaskStore

	mu         sync.Mutex
	active     map[string]*activeSession
	onTerminal func(session domain.ExecutorSession)
}

// NewSessionManager creates a session manager
func NewSessionManager(
	runner ports.ExecutorRunner,
	sessions ports.SessionRepository,
	messages ports.MessageRepository,
	tasks ports.TaskStore,
	events ports.EventSink,
	defaultExecutor string,
) *SessionManager {
	return &SessionManager{
		active:          make(map[string]*activeSession),
		defaultExecutor: defaultExecutor,
		events:          events,
		messages:        messages,
		parser:          claude.NewStreamParser(),
		queue:           NewMessageQueue(),
		runner:          runner,
		sessions:        sessions,
		tasks:           tasks,
	}
}

// NotifyTerminal registers an observer invoked after every session reaches a
// terminal state, on top of any per-start OnTerminal callback. Active sessions
// hold column concurrency slots, so the hook engine uses this to re-pump the
// task's column. Must be set before any session starts.
func (m *SessionManager) NotifyTerminal(fn func(session domain.ExecutorSession)) {
	m.onTerminal = fn
}

// ListExecutors returns the runner's executor catalog
func (m *SessionManager) ListExecutors() []ports.ExecutorInfo {
	return m.runner.ListExecutors()
}

// IsActive reports whether the task currently holds a live session
func (m *SessionManager) IsActive(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[taskID]
	return ok
}

// ActivePID returns the live subprocess pid for the task, or 0
func (m *SessionManager) ActivePID(taskID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record := m.active[taskID]; record != nil {
		return record.handle.PID()
	}
	return 0
}

// QueuedCount returns the task's message queue depth
func (m *SessionManager) QueuedCount(taskID string) int {
	return m.queue.Len(taskID)
}

// Start launches an executor session for the task. Fails with
// ErrExecutorAlreadyRunning when the task already holds an active session.
func (m *SessionManager) Start(ctx context.Context, params StartParams) (*domain.ExecutorSession, error) {
	if params.ExecutorType == "" {
		params.ExecutorType = m.defaultExecutor
	}

	task, err := m.tasks.GetTask(ctx, params.TaskID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.active[params.TaskID]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("task %s: %w", params.TaskID, domain.ErrExecutorAlreadyRunning)
	}
	// Hold the task's slot before the blocking spawn so a concurrent Start
	// cannot slip in
	m.active[params.TaskID] = nil
	m.mu.Unlock()

	session, err := m.launch(ctx, params, task)
	if err != nil {
		m.mu.Lock()
		delete(m.active, params.TaskID)
		m.mu.Unlock()
		return nil, err
	}
	return session, nil
}

func (m *SessionManager) launch(ctx context.Context, params StartParams, task *domain.Task) (*domain.ExecutorSession, error) {
	workingDir := task.WorktreePath
	if workingDir == "" {
		workingDir = task.WorkingDirectory
	}

	session := domain.ExecutorSession{
		ExecutorType:     params.ExecutorType,
		ID:               uuid.NewString(),
		Prompt:           params.Prompt,
		StartedAt:        time.Now().UTC(),
		Status:           domain.SessionPending,
		TaskID:           params.TaskID,
		WorkingDirectory: workingDir,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	handle, err := m.runner.Start(ctx, ports.ExecSpec{
		AutoApprove:  params.AutoApprove,
		ExecutorType: params.ExecutorType,
		Images:       params.Images,
		Prompt:       params.Prompt,
		WorkingDir:   workingDir,
	})
	if err != nil {
		// Spawn failure: no retry, session fails immediately
		if markErr := m.sessions.MarkFailed(ctx, session.ID, -1, err.Error()); markErr != nil {
			logging.Logger.Error("Failed to record spawn failure", "error", markErr)
		}
		if !params.Transparent {
			m.writeTaskStatus(params.TaskID, domain.AgentError, "", err.Error(), false)
		}
		m.events.Publish(domain.NewTaskEvent(domain.EventExecutorError, params.TaskID, map[string]any{
			"error": err.Error(),
		}))
		if m.onTerminal != nil {
			exitCode := -1
			failed := session
			failed.Status = domain.SessionFailed
			failed.ErrorMessage = err.Error()
			failed.ExitCode = &exitCode
			m.onTerminal(failed)
		}
		return nil, err
	}

	if err := m.sessions.MarkRunning(ctx, session.ID); err != nil {
		logging.Logger.Error("Failed to mark session running", "session_id", session.ID, "error", err)
	}
	session.Status = domain.SessionRunning

	m.mu.Lock()
	m.active[params.TaskID] = &activeSession{
		handle:      handle,
		id:          session.ID,
		transparent: params.Transparent,
	}
	m.mu.Unlock()

	if !params.Transparent {
		m.writeTaskStatus(params.TaskID, domain.AgentExecuting, "Starting "+params.ExecutorType, "", true)
	}
	m.events.Publish(domain.NewTaskEvent(domain.EventExecutorStarted, params.TaskID, map[string]any{
		"executor_type": params.ExecutorType,
		"pid":           handle.PID(),
		"session_id":    session.ID,
	}))

	go m.supervise(session, params, handle)
	return &session, nil
}

// supervise owns the subprocess lifetime: it classifies output until the
// stream closes, then records the terminal state and drains the queue.
func (m *SessionManager) supervise(session domain.ExecutorSession, params StartParams, handle ports.ExecHandle) {
	ctx := context.Background()
	taskID := params.TaskID
	sawError := false

	for line := range handle.Lines() {
		classified := m.parser.Classify(line)
		if m.handleOutput(ctx, taskID, params.Transparent, classified) {
			sawError = true
		}
	}

	result := <-handle.Result()

	m.mu.Lock()
	record := m.active[taskID]
	stopped := record != nil && record.stopped
	stopReason := ""
	if record != nil {
		stopReason = record.stopReason
	}
	delete(m.active, taskID)
	m.mu.Unlock()

	finished := m.recordTerminal(ctx, session, result, stopped, stopReason, sawError, params.Transparent)

	if params.OnTerminal != nil {
		params.OnTerminal(finished)
	}
	if m.onTerminal != nil {
		m.onTerminal(finished)
	}

	if stopped && stopReason == StopReasonUserCancelled {
		m.discardQueue(ctx, taskID)
		return
	}
	m.drainNext(ctx, taskID, params.ExecutorType)
}

// handleOutput emits events and persists transcript entries for one
// classified line. Returns true when the line was an error report.
func (m *SessionManager) handleOutput(ctx context.Context, taskID string, transparent bool, c claude.Classified) bool {
	switch c.Kind {
	case claude.KindSkip:
		return false

	case claude.KindTodos:
		m.events.Publish(domain.NewTaskEvent(domain.EventExecutorTodos, taskID, map[string]any{
			"todos": c.Todos,
		}))
		if !transparent && c.StatusMessage != "" {
			m.writeTaskStatus(taskID, domain.AgentExecuting, c.StatusMessage, "", true)
		}
		return false

	case claude.KindError:
		m.events.Publish(domain.NewTaskEvent(domain.EventExecutorError, taskID, map[string]any{
			"error": c.Content,
		}))
		if !transparent {
			m.writeTaskStatus(taskID, domain.AgentError, c.StatusMessage, c.Content, true)
		}
		// Session is flagged but not terminated; the subprocess exits on
		// its own
		return true
	}

	outputType := domain.OutputParsed
	if c.Kind == claude.KindRaw {
		outputType = domain.OutputRaw
	}
	m.events.Publish(domain.NewTaskEvent(domain.EventExecutorOutput, taskID, map[string]any{
		"type":    string(outputType),
		"content": c.Content,
	}))

	if c.Role != "" && c.Content != "" {
		if _, err := m.messages.Append(ctx, domain.Message{
			Content: c.Content,
			Role:    c.Role,
			Status:  domain.MessageSent,
			TaskID:  taskID,
		}); err != nil {
			logging.Logger.Error("Failed to persist transcript message",
				"task_id", taskID, "error", err)
		}
	}

	if !transparent && c.StatusMessage != "" {
		m.writeTaskStatus(taskID, domain.AgentExecuting, c.StatusMessage, "", true)
	}
	return false
}

func (m *SessionManager) recordTerminal(
	ctx context.Context,
	session domain.ExecutorSession,
	result ports.ExecResult,
	stopped bool,
	stopReason string,
	sawError bool,
	transparent bool,
) domain.ExecutorSession {
	taskID := session.TaskID
	now := time.Now().UTC()
	session.CompletedAt = &now

	switch {
	case stopped:
		if err := m.sessions.MarkStopped(ctx, session.ID, stopReason); err != nil {
			logging.Logger.Error("Failed to mark session stopped", "session_id", session.ID, "error", err)
		}
		if !transparent {
			m.writeTaskStatus(taskID, domain.AgentIdle, "", "", false)
		}
		m.events.Publish(domain.NewTaskEvent(domain.EventExecutorStopped, taskID, map[string]any{
			"reason":     stopReason,
			"session_id": session.ID,
		}))
		session.Status = domain.SessionStopped
		session.StopReason = stopReason
		return session

	case result.Err != nil:
		if err := m.sessions.MarkFailed(ctx, session.ID, result.ExitCode, result.Err.Error()); err != nil {
			logging.Logger.Error("Failed to mark session failed", "session_id", session.ID, "error", err)
		}
		if !transparent {
			m.writeTaskStatus(taskID, domain.AgentError, "", result.Err.Error(), false)
		}
		m.events.Publish(domain.NewTaskEvent(domain.EventExecutorCompleted, taskID, map[string]any{
			"status":     string(domain.SessionFailed),
			"exit_code":  result.ExitCode,
			"session_id": session.ID,
		}))
		session.ErrorMessage = result.Err.Error()
		session.ExitCode = &result.ExitCode
		session.Status = domain.SessionFailed
		return session

	default:
		if err := m.sessions.MarkCompleted(ctx, session.ID); err != nil {
			logging.Logger.Error("Failed to mark session completed", "session_id", session.ID, "error", err)
		}
		if !transparent {
			status := domain.AgentIdle
			if sawError {
				status = domain.AgentError
			}
			m.writeTaskStatus(taskID, status, "", "", false)
		}
		m.events.Publish(domain.NewTaskEvent(domain.EventExecutorCompleted, taskID, map[string]any{
			"status":     string(domain.SessionCompleted),
			"exit_code":  0,
			"session_id": session.ID,
		}))
		zero := 0
		session.ExitCode = &zero
		session.Status = domain.SessionCompleted
		return session
	}
}

// Stop terminates the task's active session. Fails with ErrExecutorNotRunning
// when no session is live.
func (m *SessionManager) Stop(ctx context.Context, taskID, reason string) error {
	m.mu.Lock()
	record, ok := m.active[taskID]
	if !ok || record == nil {
		m.mu.Unlock()
		return fmt.Errorf("task %s: %w", taskID, domain.ErrExecutorNotRunning)
	}
	record.stopped = true
	record.stopReason = reason
	handle := record.handle
	m.mu.Unlock()

	logging.Logger.Info("Stopping executor session", "task_id", taskID, "reason", reason)
	return handle.Stop()
}

// QueueMessage appends a prompt to the task's FIFO and materializes the user
// message for history. When the task is idle the queue drains immediately;
// the returned session is nil when the prompt stays queued behind a busy
// executor.
func (m *SessionManager) QueueMessage(ctx context.Context, taskID, prompt, executorType string, images []string) (*domain.Message, *domain.ExecutorSession, error) {
	if executorType == "" {
		executorType = m.defaultExecutor
	}

	message, err := m.messages.Append(ctx, domain.Message{
		Content: prompt,
		Role:    domain.RoleUser,
		Status:  domain.MessageQueued,
		TaskID:  taskID,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist message: %w", err)
	}

	m.queue.Enqueue(taskID, domain.QueuedMessage{
		ExecutorType: executorType,
		Images:       images,
		MessageID:    message.ID,
		Prompt:       prompt,
		QueuedAt:     time.Now().UTC(),
	})

	if m.IsActive(taskID) {
		logging.Logger.Debug("Executor busy, message queued",
			"task_id", taskID, "queued", m.queue.Len(taskID))
		return message, nil, nil
	}

	session := m.drainNext(ctx, taskID, executorType)
	return message, session, nil
}

// drainNext dispatches exactly one queued message, if any
func (m *SessionManager) drainNext(ctx context.Context, taskID, fallbackExecutor string) *domain.ExecutorSession {
	queued, ok := m.queue.Dequeue(taskID)
	if !ok {
		return nil
	}

	executorType := queued.ExecutorType
	if executorType == "" {
		executorType = fallbackExecutor
	}

	session, err := m.Start(ctx, StartParams{
		ExecutorType: executorType,
		Images:       queued.Images,
		Prompt:       queued.Prompt,
		TaskID:       taskID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrExecutorAlreadyRunning) {
			// Lost a race with a concurrent start; the message keeps its
			// place and drains on the next terminal transition
			m.queue.EnqueueFront(taskID, queued)
			return nil
		}
		logging.Logger.Error("Failed to drain queued message",
			"task_id", taskID, "error", err)
		if updErr := m.messages.UpdateStatus(ctx, queued.MessageID, domain.MessageDiscarded); updErr != nil {
			logging.Logger.Error("Failed to discard message", "message_id", queued.MessageID, "error", updErr)
		}
		return nil
	}

	if err := m.messages.UpdateStatus(ctx, queued.MessageID, domain.MessageSent); err != nil {
		logging.Logger.Error("Failed to mark message sent", "message_id", queued.MessageID, "error", err)
	}
	return session
}

// discardQueue drops all queued messages for a task after user cancellation
func (m *SessionManager) discardQueue(ctx context.Context, taskID string) {
	discarded := m.queue.Clear(taskID)
	for _, queued := range discarded {
		if err := m.messages.UpdateStatus(ctx, queued.MessageID, domain.MessageDiscarded); err != nil {
			logging.Logger.Error("Failed to discard message", "message_id", queued.MessageID, "error", err)
		}
	}
	if len(discarded) > 0 {
		logging.Logger.Info("Cleared message queue after cancellation",
			"task_id", taskID, "discarded", len(discarded))
	}
}

func (m *SessionManager) writeTaskStatus(taskID string, status domain.AgentStatus, statusMessage, errorMessage string, inProgress bool) {
	ctx := context.Background()
	if err := m.tasks.UpdateAgentStatus(ctx, taskID, status, statusMessage, errorMessage, inProgress); err != nil {
		logging.Logger.Error("Failed to update task agent status", "task_id", taskID, "error", err)
	}
}
