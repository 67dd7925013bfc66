package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quadro/internal/domain"
	"quadro/internal/ports"
)

// memState is shared in-memory backing storage for the port fakes. The hook
// ledger and session fakes need the task table to answer per-column queries,
// so everything lives behind one mutex.
type memState struct {
	mu sync.Mutex

	bindings    map[string]domain.ColumnHookBinding
	columns     map[string]domain.Column
	entries     map[string]*domain.HookExecution
	entryOrder  []string
	hooks       map[string]domain.Hook
	messages    []*domain.Message
	periodicals map[string]*domain.PeriodicalTask
	sequences   map[string]int64
	sessions    map[string]*domain.ExecutorSession
	tasks       map[string]*domain.Task
}

func newMemState() *memState {
	return &memState{
		bindings:    make(map[string]domain.ColumnHookBinding),
		columns:     make(map[string]domain.Column),
		entries:     make(map[string]*domain.HookExecution),
		hooks:       make(map[string]domain.Hook),
		periodicals: make(map[string]*domain.PeriodicalTask),
		sequences:   make(map[string]int64),
		sessions:    make(map[string]*domain.ExecutorSession),
		tasks:       make(map[string]*domain.Task),
	}
}

func (s *memState) addTask(task domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := task
	s.tasks[task.ID] = &copied
}

func (s *memState) addColumn(column domain.Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns[column.ID] = column
}

func (s *memState) addHook(hook domain.Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[hook.ID] = hook
}

func (s *memState) addBinding(binding domain.ColumnHookBinding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[binding.ID] = binding
}

func (s *memState) entry(id string) domain.HookExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.entries[id]
}

func (s *memState) entriesByTask(taskID string) []domain.HookExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HookExecution
	for _, id := range s.entryOrder {
		if s.entries[id].TaskID == taskID {
			out = append(out, *s.entries[id])
		}
	}
	return out
}

// --- hook catalog fake ---

type memHooks struct{ s *memState }

var _ ports.HookRepository = (*memHooks)(nil)

func (h *memHooks) GetHook(_ context.Context, id string) (*domain.Hook, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	hook, ok := h.s.hooks[id]
	if !ok {
		return nil, domain.ErrHookNotFound
	}
	return &hook, nil
}

func (h *memHooks) ListHooks(_ context.Context, boardID string) ([]domain.Hook, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	var out []domain.Hook
	for _, hook := range h.s.hooks {
		if hook.BoardID == boardID || hook.System {
			out = append(out, hook)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (h *memHooks) CreateHook(_ context.Context, hook domain.Hook) error {
	h.s.addHook(hook)
	return nil
}

func (h *memHooks) UpdateHook(_ context.Context, hook domain.Hook) error {
	h.s.addHook(hook)
	return nil
}

func (h *memHooks) DeleteHook(_ context.Context, id string) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	delete(h.s.hooks, id)
	return nil
}

func (h *memHooks) GetBinding(_ context.Context, id string) (*domain.ColumnHookBinding, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	binding, ok := h.s.bindings[id]
	if !ok {
		return nil, domain.ErrHookNotFound
	}
	return &binding, nil
}

func (h *memHooks) ListBindings(_ context.Context, columnID string) ([]domain.ColumnHookBinding, error) {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	var out []domain.ColumnHookBinding
	for _, binding := range h.s.bindings {
		if binding.ColumnID == columnID {
			out = append(out, binding)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (h *memHooks) CreateBinding(_ context.Context, binding domain.ColumnHookBinding) error {
	h.s.addBinding(binding)
	return nil
}

func (h *memHooks) UpdateBinding(_ context.Context, binding domain.ColumnHookBinding) error {
	h.s.addBinding(binding)
	return nil
}

func (h *memHooks) DeleteBinding(_ context.Context, id string) error {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	delete(h.s.bindings, id)
	return nil
}

// --- execution ledger fake ---

type memLedger struct{ s *memState }

var _ ports.ExecutionLedger = (*memLedger)(nil)

func (l *memLedger) Append(_ context.Context, entry domain.HookExecution) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	copied := entry
	l.s.entries[entry.ID] = &copied
	l.s.entryOrder = append(l.s.entryOrder, entry.ID)
	return nil
}

func (l *memLedger) transition(id string, to domain.HookExecutionStatus, mutate func(*domain.HookExecution)) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	entry, ok := l.s.entries[id]
	if !ok {
		return fmt.Errorf("entry %s not found", id)
	}
	if !entry.Status.CanTransition(to) {
		return domain.ErrInvalidTransition
	}
	entry.Status = to
	mutate(entry)
	return nil
}

func (l *memLedger) MarkRunning(_ context.Context, id string) error {
	now := time.Now().UTC()
	return l.transition(id, domain.ExecutionRunning, func(e *domain.HookExecution) {
		e.StartedAt = &now
	})
}

func (l *memLedger) MarkCompleted(_ context.Context, id string) error {
	now := time.Now().UTC()
	return l.transition(id, domain.ExecutionCompleted, func(e *domain.HookExecution) {
		e.CompletedAt = &now
	})
}

func (l *memLedger) MarkFailed(_ context.Context, id string, errorMessage string) error {
	now := time.Now().UTC()
	return l.transition(id, domain.ExecutionFailed, func(e *domain.HookExecution) {
		e.CompletedAt = &now
		e.ErrorMessage = errorMessage
	})
}

func (l *memLedger) MarkSkipped(_ context.Context, id string, reason domain.SkipReason) error {
	now := time.Now().UTC()
	return l.transition(id, domain.ExecutionSkipped, func(e *domain.HookExecution) {
		e.CompletedAt = &now
		e.SkipReason = reason
	})
}

func (l *memLedger) MarkCancelled(_ context.Context, id string) error {
	now := time.Now().UTC()
	return l.transition(id, domain.ExecutionCancelled, func(e *domain.HookExecution) {
		e.CompletedAt = &now
	})
}

func (l *memLedger) Get(_ context.Context, id string) (*domain.HookExecution, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	entry, ok := l.s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s not found", id)
	}
	copied := *entry
	return &copied, nil
}

func (l *memLedger) ListByTask(_ context.Context, taskID string) ([]domain.HookExecution, error) {
	return l.s.entriesByTask(taskID), nil
}

func (l *memLedger) ListPendingByTask(_ context.Context, taskID string) ([]domain.HookExecution, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var out []domain.HookExecution
	for _, id := range l.s.entryOrder {
		entry := l.s.entries[id]
		if entry.TaskID == taskID && entry.Status == domain.ExecutionPending {
			out = append(out, *entry)
		}
	}
	sortPendingEntries(out)
	return out, nil
}

// sortPendingEntries mirrors the repository ordering: queued_at, then the
// binding position persisted on the entry.
func sortPendingEntries(entries []domain.HookExecution) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].QueuedAt.Equal(entries[j].QueuedAt) {
			return entries[i].QueuedAt.Before(entries[j].QueuedAt)
		}
		return entries[i].ChainPosition < entries[j].ChainPosition
	})
}

func (l *memLedger) ListPendingInColumn(_ context.Context, columnID string) ([]domain.HookExecution, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var out []domain.HookExecution
	for _, id := range l.s.entryOrder {
		entry := l.s.entries[id]
		if entry.Status != domain.ExecutionPending {
			continue
		}
		task, ok := l.s.tasks[entry.TaskID]
		if !ok || task.ColumnID != columnID {
			continue
		}
		out = append(out, *entry)
	}
	sortPendingEntries(out)
	return out, nil
}

func (l *memLedger) RunningByTask(_ context.Context, taskID string) (*domain.HookExecution, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for _, id := range l.s.entryOrder {
		entry := l.s.entries[id]
		if entry.TaskID == taskID && entry.Status == domain.ExecutionRunning {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

func (l *memLedger) RunningTaskIDsInColumn(_ context.Context, columnID string) ([]string, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, id := range l.s.entryOrder {
		entry := l.s.entries[id]
		if entry.Status != domain.ExecutionRunning || seen[entry.TaskID] {
			continue
		}
		task, ok := l.s.tasks[entry.TaskID]
		if !ok || task.ColumnID != columnID {
			continue
		}
		seen[entry.TaskID] = true
		out = append(out, entry.TaskID)
	}
	return out, nil
}

func (l *memLedger) HasExecutedBinding(_ context.Context, taskID, bindingID string) (bool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for _, entry := range l.s.entries {
		if entry.TaskID == taskID && entry.ColumnHookID == bindingID && entry.CountsAsExecuted() {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) SkipPendingByTask(_ context.Context, taskID string, reason domain.SkipReason) ([]string, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	now := time.Now().UTC()
	var skipped []string
	for _, id := range l.s.entryOrder {
		entry := l.s.entries[id]
		if entry.TaskID == taskID && entry.Status == domain.ExecutionPending {
			entry.Status = domain.ExecutionSkipped
			entry.SkipReason = reason
			entry.CompletedAt = &now
			skipped = append(skipped, id)
		}
	}
	return skipped, nil
}

func (l *memLedger) ReconcileInterrupted(_ context.Context) (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for _, entry := range l.s.entries {
		if entry.Status == domain.ExecutionPending || entry.Status == domain.ExecutionRunning {
			entry.Status = domain.ExecutionSkipped
			entry.SkipReason = domain.SkipReasonServerRestart
			entry.CompletedAt = &now
			count++
		}
	}
	return count, nil
}

// --- session repository fake ---

type memSessions struct{ s *memState }

var _ ports.SessionRepository = (*memSessions)(nil)

func (r *memSessions) Create(_ context.Context, session domain.ExecutorSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := session
	r.s.sessions[session.ID] = &copied
	return nil
}

func (r *memSessions) MarkRunning(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[id].Status = domain.SessionRunning
	return nil
}

func (r *memSessions) MarkCompleted(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	zero := 0
	session := r.s.sessions[id]
	session.CompletedAt = &now
	session.ExitCode = &zero
	session.Status = domain.SessionCompleted
	return nil
}

func (r *memSessions) MarkFailed(_ context.Context, id string, exitCode int, errorMessage string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	session := r.s.sessions[id]
	session.CompletedAt = &now
	session.ErrorMessage = errorMessage
	session.ExitCode = &exitCode
	session.Status = domain.SessionFailed
	return nil
}

func (r *memSessions) MarkStopped(_ context.Context, id string, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	session := r.s.sessions[id]
	session.CompletedAt = &now
	session.Status = domain.SessionStopped
	session.StopReason = reason
	return nil
}

func (r *memSessions) Get(_ context.Context, id string) (*domain.ExecutorSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	copied := *session
	return &copied, nil
}

func (r *memSessions) ActiveByTask(_ context.Context, taskID string) (*domain.ExecutorSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.TaskID == taskID && session.Status.IsActive() {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memSessions) ListByTask(_ context.Context, taskID string) ([]domain.ExecutorSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.ExecutorSession
	for _, session := range r.s.sessions {
		if session.TaskID == taskID {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *memSessions) ActiveTaskIDsInColumn(_ context.Context, columnID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, session := range r.s.sessions {
		if !session.Status.IsActive() || seen[session.TaskID] {
			continue
		}
		task, ok := r.s.tasks[session.TaskID]
		if !ok || task.ColumnID != columnID {
			continue
		}
		seen[session.TaskID] = true
		out = append(out, session.TaskID)
	}
	return out, nil
}

func (r *memSessions) ReconcileInterrupted(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	count := 0
	for _, session := range r.s.sessions {
		if session.Status.IsActive() {
			session.CompletedAt = &now
			session.ErrorMessage = "interrupted by server restart"
			session.Status = domain.SessionFailed
			count++
		}
	}
	return count, nil
}

// --- message repository fake ---

type memMessages struct{ s *memState }

var _ ports.MessageRepository = (*memMessages)(nil)

func (r *memMessages) Append(_ context.Context, message domain.Message) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Status == "" {
		message.Status = domain.MessageQueued
	}
	r.s.sequences[message.TaskID]++
	message.Sequence = r.s.sequences[message.TaskID]
	message.CreatedAt = time.Now().UTC()
	copied := message
	r.s.messages = append(r.s.messages, &copied)
	return &message, nil
}

func (r *memMessages) ListByTask(_ context.Context, taskID string) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Message
	for _, message := range r.s.messages {
		if message.TaskID == taskID {
			out = append(out, *message)
		}
	}
	return out, nil
}

func (r *memMessages) UpdateStatus(_ context.Context, id string, status domain.MessageStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, message := range r.s.messages {
		if message.ID == id {
			message.Status = status
			return nil
		}
	}
	return fmt.Errorf("message %s not found", id)
}

// --- task store fake ---

type memTasks struct{ s *memState }

var _ ports.TaskStore = (*memTasks)(nil)

func (r *memTasks) GetTask(_ context.Context, id string) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *memTasks) GetColumn(_ context.Context, id string) (*domain.Column, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	column, ok := r.s.columns[id]
	if !ok {
		return nil, fmt.Errorf("column %s not found", id)
	}
	return &column, nil
}

func (r *memTasks) UpsertColumn(_ context.Context, column domain.Column) error {
	r.s.addColumn(column)
	return nil
}

func (r *memTasks) CreateTask(_ context.Context, boardID, columnID, title, description string) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task := &domain.Task{
		AgentStatus: domain.AgentIdle,
		BoardID:     boardID,
		ColumnID:    columnID,
		ID:          uuid.NewString(),
		Title:       title,
	}
	r.s.tasks[task.ID] = task
	copied := *task
	return &copied, nil
}

func (r *memTasks) UpdateAgentStatus(_ context.Context, taskID string, status domain.AgentStatus, statusMessage, errorMessage string, inProgress bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.AgentStatus = status
	task.AgentStatusMessage = statusMessage
	task.ErrorMessage = errorMessage
	task.InProgress = inProgress
	return nil
}

func (r *memTasks) UpdateWorktree(_ context.Context, taskID, path, branch string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.tasks[taskID]
	if !ok {
		return domain.ErrTaskNotFound
	}
	task.WorktreeBranch = branch
	task.WorktreePath = path
	return nil
}

// --- periodical repository fake ---

type memPeriodicals struct{ s *memState }

var _ ports.PeriodicalTaskRepository = (*memPeriodicals)(nil)

func (r *memPeriodicals) Create(_ context.Context, task domain.PeriodicalTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := task
	r.s.periodicals[task.ID] = &copied
	return nil
}

func (r *memPeriodicals) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.periodicals, id)
	return nil
}

func (r *memPeriodicals) Get(_ context.Context, id string) (*domain.PeriodicalTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.periodicals[id]
	if !ok {
		return nil, fmt.Errorf("periodical %s not found", id)
	}
	copied := *task
	return &copied, nil
}

func (r *memPeriodicals) List(_ context.Context, boardID string) ([]domain.PeriodicalTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PeriodicalTask
	for _, task := range r.s.periodicals {
		if task.BoardID == boardID {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (r *memPeriodicals) ListDue(_ context.Context, now time.Time) ([]domain.PeriodicalTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PeriodicalTask
	for _, task := range r.s.periodicals {
		if task.Enabled && !task.NextExecutionAt.After(now) {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (r *memPeriodicals) RecordExecution(_ context.Context, id string, executedAt, next time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.periodicals[id]
	if !ok {
		return fmt.Errorf("periodical %s not found", id)
	}
	task.ExecutionCount++
	task.LastExecutedAt = &executedAt
	task.NextExecutionAt = next
	return nil
}

func (r *memPeriodicals) SetEnabled(_ context.Context, id string, enabled bool, next time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	task, ok := r.s.periodicals[id]
	if !ok {
		return fmt.Errorf("periodical %s not found", id)
	}
	task.Enabled = enabled
	if enabled {
		task.NextExecutionAt = next
	}
	return nil
}

// --- event sink fake ---

type memEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

var _ ports.EventSink = (*memEvents)(nil)

func (e *memEvents) Publish(event domain.Event) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

func (e *memEvents) ofType(eventType domain.EventType) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Event
	for _, event := range e.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// --- executor runner fake ---

// fakeHandle is a scripted executor subprocess. Tests feed lines and a
// result; Stop records the call and finishes the process.
type fakeHandle struct {
	lines    chan string
	result   chan ports.ExecResult
	stopOnce sync.Once
	stopped  chan struct{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		lines:   make(chan string, 64),
		result:  make(chan ports.ExecResult, 1),
		stopped: make(chan struct{}),
	}
}

func (h *fakeHandle) PID() int                        { return 4242 }
func (h *fakeHandle) Lines() <-chan string            { return h.lines }
func (h *fakeHandle) Result() <-chan ports.ExecResult { return h.result }

func (h *fakeHandle) Stop() error {
	h.stopOnce.Do(func() {
		close(h.stopped)
		close(h.lines)
		h.result <- ports.ExecResult{Err: fmt.Errorf("signal: terminated"), ExitCode: -1}
	})
	return nil
}

// finish closes the stream with the given outcome
func (h *fakeHandle) finish(result ports.ExecResult) {
	close(h.lines)
	h.result <- result
}

type fakeRunner struct {
	mu        sync.Mutex
	handles   []*fakeHandle
	specs     []ports.ExecSpec
	startErr  error
	startGate chan struct{}
}

var _ ports.ExecutorRunner = (*fakeRunner)(nil)

func (r *fakeRunner) Start(_ context.Context, spec ports.ExecSpec) (ports.ExecHandle, error) {
	r.mu.Lock()
	gate := r.startGate
	r.mu.Unlock()
	if gate != nil {
		// simulates a slow subprocess spawn
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	handle := newFakeHandle()
	r.handles = append(r.handles, handle)
	r.specs = append(r.specs, spec)
	return handle, nil
}

func (r *fakeRunner) ListExecutors() []ports.ExecutorInfo {
	return []ports.ExecutorInfo{{Available: true, Name: "Claude Code", Type: "claude"}}
}

func (r *fakeRunner) handle(i int) *fakeHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[i]
}

func (r *fakeRunner) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// --- sound player fake ---

type fakeSound struct {
	mu     sync.Mutex
	played []string
}

var _ ports.SoundPlayer = (*fakeSound)(nil)

func (p *fakeSound) PlaySound() error {
	return p.PlaySoundForEvent("default")
}

func (p *fakeSound) PlaySoundForEvent(eventType string) error {
	p.mu.Lock()
	p.played = append(p.played, eventType)
	p.mu.Unlock()
	return nil
}

// fixture wires the full service graph over the in-memory fakes
type fixture struct {
	engine   *HookEngine
	events   *memEvents
	hooks    *memHooks
	ledger   *memLedger
	limiter  *Limiter
	manager  *SessionManager
	messages *memMessages
	resolver *ChainResolver
	runner   *fakeRunner
	sessions *memSessions
	sound    *fakeSound
	state    *memState
	tasks    *memTasks
}

func newFixture() *fixture {
	state := newMemState()
	f := &fixture{
		events:   &memEvents{},
		hooks:    &memHooks{s: state},
		ledger:   &memLedger{s: state},
		messages: &memMessages{s: state},
		runner:   &fakeRunner{},
		sessions: &memSessions{s: state},
		sound:    &fakeSound{},
		state:    state,
		tasks:    &memTasks{s: state},
	}
	f.manager = NewSessionManager(f.runner, f.sessions, f.messages, f.tasks, f.events, "claude")
	f.resolver = NewChainResolver(f.hooks, f.ledger, f.tasks, f.events)
	f.limiter = NewLimiter(f.ledger, f.sessions, f.tasks)
	f.engine = NewHookEngine(f.resolver, f.limiter, f.hooks, f.ledger, f.manager, f.tasks,
		f.events, f.sound, true, 5*time.Second)
	return f
}

// waitFor polls until the condition holds or the deadline passes
func waitFor(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}
