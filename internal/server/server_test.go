package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadro/internal/adapters/storage"
	"quadro/internal/domain"
	"quadro/internal/ports"
	"quadro/internal/services"
)

// stubHandle is a scripted subprocess handle for the websocket tests
type stubHandle struct {
	lines  chan string
	once   sync.Once
	result chan ports.ExecResult
}

func (h *stubHandle) PID() int                        { return 7777 }
func (h *stubHandle) Lines() <-chan string            { return h.lines }
func (h *stubHandle) Result() <-chan ports.ExecResult { return h.result }

func (h *stubHandle) Stop() error {
	h.once.Do(func() {
		close(h.lines)
		h.result <- ports.ExecResult{Err: fmt.Errorf("signal: terminated"), ExitCode: -1}
	})
	return nil
}

func (h *stubHandle) finish(result ports.ExecResult) {
	h.once.Do(func() {
		close(h.lines)
		h.result <- result
	})
}

type stubRunner struct {
	mu      sync.Mutex
	handles []*stubHandle
}

func (r *stubRunner) Start(_ context.Context, _ ports.ExecSpec) (ports.ExecHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle := &stubHandle{
		lines:  make(chan string, 16),
		result: make(chan ports.ExecResult, 1),
	}
	r.handles = append(r.handles, handle)
	return handle, nil
}

func (r *stubRunner) ListExecutors() []ports.ExecutorInfo {
	return []ports.ExecutorInfo{{Available: true, Name: "Claude Code", Type: "claude"}}
}

func (r *stubRunner) last() *stubHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[len(r.handles)-1]
}

type noopSound struct{}

func (noopSound) PlaySound() error                 { return nil }
func (noopSound) PlaySoundForEvent(_ string) error { return nil }

type stubWorktrees struct{}

func (stubWorktrees) Create(_, _, _ string) error { return nil }
func (stubWorktrees) Remove(_, _ string) error    { return nil }
func (stubWorktrees) BuildPath(base, _, taskName string) string {
	return filepath.Join(base, taskName)
}
func (stubWorktrees) BranchForTask(title string) (string, error) {
	return "task/" + strings.ToLower(strings.ReplaceAll(title, " ", "-")), nil
}

type testEnv struct {
	runner *stubRunner
	server *httptest.Server
	store  *storage.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "quadro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	runner := &stubRunner{}
	broadcaster := services.NewBroadcaster()
	manager := services.NewSessionManager(runner, store.Sessions, store.Messages, store.Tasks, broadcaster, "claude")
	resolver := services.NewChainResolver(store.Hooks, store.Ledger, store.Tasks, broadcaster)
	limiter := services.NewLimiter(store.Ledger, store.Sessions, store.Tasks)
	engine := services.NewHookEngine(resolver, limiter, store.Hooks, store.Ledger, manager,
		store.Tasks, broadcaster, noopSound{}, false, 5*time.Second)

	srv := New("localhost", 0, false, Deps{
		Broadcaster:  broadcaster,
		Engine:       engine,
		Hooks:        store.Hooks,
		Ledger:       store.Ledger,
		Manager:      manager,
		Messages:     store.Messages,
		Periodicals:  store.Periodicals,
		Sessions:     store.Sessions,
		Tasks:        store.Tasks,
		WorktreeBase: t.TempDir(),
		Worktrees:    stubWorktrees{},
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{runner: runner, server: ts, store: store}
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) seedColumn(t *testing.T, id string, hooksEnabled bool) {
	t.Helper()
	resp := e.request(t, http.MethodPut, "/api/columns/"+id, map[string]any{
		"board_id":      "board-1",
		"hooks_enabled": hooksEnabled,
		"name":          id,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (e *testEnv) seedTask(t *testing.T, columnID string) string {
	t.Helper()
	task, err := e.store.Tasks.CreateTask(context.Background(), "board-1", columnID, "Test task", "")
	require.NoError(t, err)
	return task.ID
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, resp)["status"])
}

func TestServer_HookCRUD(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"command":  "make test",
		"kind":     "script",
		"name":     "Run tests",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	hookID := created["id"].(string)
	assert.False(t, created["system"].(bool))

	resp = env.request(t, http.MethodGet, "/api/boards/board-1/hooks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hooks := decode(t, resp)["hooks"].([]any)
	require.Len(t, hooks, 1)

	resp = env.request(t, http.MethodPut, "/api/hooks/"+hookID, map[string]any{
		"command": "make test ./...",
		"name":    "Run all tests",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Run all tests", decode(t, resp)["name"])

	resp = env.request(t, http.MethodDelete, "/api/hooks/"+hookID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_SystemHookImmutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.Hooks.CreateHook(ctx, domain.Hook{
		ID:     "sys-worktree",
		Kind:   domain.HookKindScript,
		Name:   "Create Worktree",
		System: true,
	}))

	resp := env.request(t, http.MethodPut, "/api/hooks/sys-worktree", map[string]any{"name": "Renamed"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodDelete, "/api/hooks/sys-worktree", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_BadHookRequests(t *testing.T) {
	env := newTestEnv(t)

	// Script hook without a command
	resp := env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"kind":     "script",
		"name":     "Broken",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown kind
	resp = env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"kind":     "cron",
		"name":     "Broken",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_BindingCRUD(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)

	resp := env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"command":  "make lint",
		"kind":     "script",
		"name":     "Lint",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hookID := decode(t, resp)["id"].(string)

	resp = env.request(t, http.MethodPost, "/api/column-hooks", map[string]any{
		"column_id": "col-1",
		"hook_id":   hookID,
		"position":  1,
		"settings":  map[string]any{"sound": "completed"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	binding := decode(t, resp)
	assert.Equal(t, true, binding["removable"])

	resp = env.request(t, http.MethodGet, "/api/columns/col-1/hooks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bindings := decode(t, resp)["column_hooks"].([]any)
	require.Len(t, bindings, 1)

	// Binding a missing hook fails
	resp = env.request(t, http.MethodPost, "/api/column-hooks", map[string]any{
		"column_id": "col-1",
		"hook_id":   "missing",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_TaskMovedRunsChain(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)
	taskID := env.seedTask(t, "col-1")

	resp := env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"command":  "exit 0",
		"kind":     "script",
		"name":     "Noop",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	hookID := decode(t, resp)["id"].(string)

	resp = env.request(t, http.MethodPost, "/api/column-hooks", map[string]any{
		"column_id": "col-1",
		"hook_id":   hookID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/tasks/"+taskID+"/moved", map[string]any{
		"column_id": "col-1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		resp := env.request(t, http.MethodGet, "/api/tasks/"+taskID+"/executions", nil)
		executions := decode(t, resp)["executions"].([]any)
		if len(executions) != 1 {
			return false
		}
		return executions[0].(map[string]any)["status"] == string(domain.ExecutionCompleted)
	}, 3*time.Second, 25*time.Millisecond)
}

func TestServer_TaskMovedUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)

	// A column with no bindings resolves to an empty chain regardless of
	// the task, so bind one hook first
	resp := env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"command":  "exit 0",
		"kind":     "script",
		"name":     "Noop",
	})
	hookID := decode(t, resp)["id"].(string)
	resp = env.request(t, http.MethodPost, "/api/column-hooks", map[string]any{
		"column_id": "col-1",
		"hook_id":   hookID,
	})
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/tasks/missing/moved", map[string]any{
		"column_id": "col-1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_PeriodicalValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/api/periodicals", map[string]any{
		"board_id": "board-1",
		"schedule": "99 * * * *",
		"title":    "Broken",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/periodicals", map[string]any{
		"board_id": "board-1",
		"schedule": "*/15 * * * *",
		"title":    "Digest",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	assert.Equal(t, true, created["enabled"])
	assert.NotEmpty(t, created["next_execution_at"])

	id := created["id"].(string)
	resp = env.request(t, http.MethodPut, "/api/periodicals/"+id+"/enabled", map[string]any{"enabled": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["enabled"])
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestServer_TaskSocketCommands(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)
	taskID := env.seedTask(t, "col-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/api/tasks/"+taskID+"/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	readUntil := func(wanted string) map[string]any {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
			var msg map[string]any
			require.NoError(t, conn.ReadJSON(&msg))
			if msg["type"] == wanted {
				return msg
			}
		}
		t.Fatalf("never received %s", wanted)
		return nil
	}

	// get_status on an idle task
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_status"}))
	status := readUntil("get_status_result")
	assert.Equal(t, string(domain.AgentIdle), status["agent_status"])
	assert.Equal(t, false, status["in_progress"])

	// send_message starts an executor immediately on an idle task
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "send_message",
		"prompt": "hello there",
	}))
	sent := readUntil("send_message_result")
	assert.Equal(t, "started", sent["status"])
	assert.Equal(t, float64(7777), sent["pid"])
	assert.Equal(t, "claude", sent["executor_type"])

	// executor lifecycle events stream over the same socket
	readUntil("executor_started")

	env.runner.last().lines <- `{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`
	output := readUntil("executor_output")
	payload := output["payload"].(map[string]any)
	assert.Equal(t, "hi", payload["content"])

	// stop_executor cancels the live session
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "stop_executor"}))
	stopped := readUntil("stop_executor_result")
	assert.Equal(t, "stopping", stopped["status"])
	readUntil("executor_stopped")

	// get_history reports the stopped session
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "get_history"}))
	history := readUntil("get_history_result")
	sessions := history["sessions"].([]any)
	require.Len(t, sessions, 1)
	assert.Equal(t, string(domain.SessionStopped), sessions[0].(map[string]any)["status"])

	// unknown commands produce an error frame, not a dropped connection
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "fly_to_the_moon"}))
	errMsg := readUntil("error")
	assert.Contains(t, errMsg["error"], "unknown command")
}

func TestServer_StopExecutorWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)
	taskID := env.seedTask(t, "col-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/api/tasks/"+taskID+"/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "stop_executor"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["error"], "no executor running")
}

func TestServer_CreateWorktree(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)
	taskID := env.seedTask(t, "col-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/api/tasks/"+taskID+"/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "create_worktree"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	// Seeded tasks have no working directory; the command reports that
	// instead of creating anything
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["error"], "working directory")
}

func TestServer_BoardSocketReceivesClientActions(t *testing.T) {
	env := newTestEnv(t)
	env.seedColumn(t, "col-1", true)
	taskID := env.seedTask(t, "col-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(env.server.URL, "/api/boards/board-1/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// A script hook with a sound setting fires a play-sound client action
	resp := env.request(t, http.MethodPost, "/api/hooks", map[string]any{
		"board_id": "board-1",
		"command":  "exit 0",
		"kind":     "script",
		"name":     "Ding",
	})
	hookID := decode(t, resp)["id"].(string)
	resp = env.request(t, http.MethodPost, "/api/column-hooks", map[string]any{
		"column_id": "col-1",
		"hook_id":   hookID,
		"settings":  map[string]any{"sound": "completed"},
	})
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/tasks/"+taskID+"/moved", map[string]any{
		"column_id": "col-1",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, string(domain.EventClientAction), event["type"])
	payload := event["payload"].(map[string]any)
	assert.Equal(t, "play-sound", payload["type"])
	assert.Equal(t, "completed", payload["sound"])
}
