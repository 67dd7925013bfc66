package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quadro/internal/domain"
	"quadro/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsCommand is one inbound command on a task socket
type wsCommand struct {
	ExecutorType string   `json:"executor_type,omitempty"`
	Images       []string `json:"images,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
	Type         string   `json:"type"`
}

// wsConn wraps a websocket connection with a write lock. Gorilla allows only
// one concurrent writer; command responses and broadcast events share the
// connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// taskSocket serves the per-task command and event stream
func (h *handler) taskSocket(c *gin.Context) {
	taskID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Logger.Error("WebSocket upgrade failed", "task_id", taskID, "error", err)
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()

	events, cancel := h.deps.Broadcaster.SubscribeTask(taskID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := ws.writeJSON(event); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	logging.Logger.Debug("Task socket connected", "task_id", taskID)
	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Logger.Debug("Task socket closed unexpectedly", "task_id", taskID, "error", err)
			}
			return
		}
		h.dispatchCommand(c.Request.Context(), ws, taskID, cmd)
	}
}

func (h *handler) dispatchCommand(ctx context.Context, ws *wsConn, taskID string, cmd wsCommand) {
	var (
		payload map[string]any
		err     error
	)

	switch cmd.Type {
	case "send_message":
		payload, err = h.sendMessage(ctx, taskID, cmd)
	case "stop_executor":
		payload, err = h.stopExecutor(ctx, taskID)
	case "list_executors":
		payload = map[string]any{"executors": h.deps.Manager.ListExecutors()}
	case "get_status":
		payload, err = h.taskStatus(ctx, taskID)
	case "get_history":
		payload, err = h.taskHistory(ctx, taskID)
	case "create_worktree":
		payload, err = h.createWorktree(ctx, taskID)
	default:
		err = errors.New("unknown command type: " + cmd.Type)
	}

	if err != nil {
		writeErr := ws.writeJSON(map[string]any{
			"type":    "error",
			"command": cmd.Type,
			"error":   err.Error(),
		})
		if writeErr != nil {
			logging.Logger.Debug("Failed to write error response", "task_id", taskID, "error", writeErr)
		}
		return
	}

	response := map[string]any{"type": cmd.Type + "_result"}
	for k, v := range payload {
		response[k] = v
	}
	if err := ws.writeJSON(response); err != nil {
		logging.Logger.Debug("Failed to write command response", "task_id", taskID, "error", err)
	}
}

func (h *handler) sendMessage(ctx context.Context, taskID string, cmd wsCommand) (map[string]any, error) {
	if cmd.Prompt == "" {
		return nil, errors.New("send_message requires a prompt")
	}

	message, session, err := h.deps.Manager.QueueMessage(ctx, taskID, cmd.Prompt, cmd.ExecutorType, cmd.Images)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"message_id": message.ID,
		"task_id":    taskID,
	}
	if session != nil {
		payload["status"] = "started"
		payload["executor_type"] = session.ExecutorType
		payload["pid"] = h.deps.Manager.ActivePID(taskID)
	} else {
		payload["status"] = "queued"
		payload["queued"] = h.deps.Manager.QueuedCount(taskID)
	}
	return payload, nil
}

func (h *handler) stopExecutor(ctx context.Context, taskID string) (map[string]any, error) {
	if err := h.deps.Engine.StopTask(ctx, taskID); err != nil {
		return nil, err
	}
	return map[string]any{"status": "stopping", "task_id": taskID}, nil
}

type sessionSummary struct {
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	ExecutorType string               `json:"executor_type"`
	ExitCode     *int                 `json:"exit_code,omitempty"`
	ID           string               `json:"id"`
	StartedAt    time.Time            `json:"started_at"`
	Status       domain.SessionStatus `json:"status"`
}

func summarizeSessions(sessions []domain.ExecutorSession) []sessionSummary {
	out := make([]sessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, sessionSummary{
			CompletedAt:  session.CompletedAt,
			ErrorMessage: session.ErrorMessage,
			ExecutorType: session.ExecutorType,
			ExitCode:     session.ExitCode,
			ID:           session.ID,
			StartedAt:    session.StartedAt,
			Status:       session.Status,
		})
	}
	return out
}

func (h *handler) taskStatus(ctx context.Context, taskID string) (map[string]any, error) {
	task, err := h.deps.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	active, err := h.deps.Sessions.ActiveByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var sessions []domain.ExecutorSession
	if active != nil {
		sessions = append(sessions, *active)
	}

	return map[string]any{
		"agent_status":         string(task.AgentStatus),
		"agent_status_message": task.AgentStatusMessage,
		"error_message":        task.ErrorMessage,
		"in_progress":          task.InProgress,
		"queued_messages":      h.deps.Manager.QueuedCount(taskID),
		"sessions":             summarizeSessions(sessions),
		"worktree_branch":      task.WorktreeBranch,
		"worktree_path":        task.WorktreePath,
	}, nil
}

func (h *handler) taskHistory(ctx context.Context, taskID string) (map[string]any, error) {
	sessions, err := h.deps.Sessions.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"sessions": summarizeSessions(sessions),
		"task_id":  taskID,
	}, nil
}

func (h *handler) createWorktree(ctx context.Context, taskID string) (map[string]any, error) {
	task, err := h.deps.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.WorktreePath != "" {
		return map[string]any{
			"worktree_branch": task.WorktreeBranch,
			"worktree_path":   task.WorktreePath,
		}, nil
	}
	if task.WorkingDirectory == "" {
		return nil, errors.New("task has no working directory to branch from")
	}

	branch, err := h.deps.Worktrees.BranchForTask(task.Title)
	if err != nil {
		return nil, err
	}
	path := h.deps.Worktrees.BuildPath(h.deps.WorktreeBase, "", task.Title)

	if err := h.deps.Worktrees.Create(task.WorkingDirectory, path, branch); err != nil {
		return nil, err
	}
	if err := h.deps.Tasks.UpdateWorktree(ctx, taskID, path, branch); err != nil {
		return nil, err
	}

	return map[string]any{
		"worktree_branch": branch,
		"worktree_path":   path,
	}, nil
}

// boardSocket streams client actions (play-sound, move-task) for a board
func (h *handler) boardSocket(c *gin.Context) {
	boardID := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Logger.Error("WebSocket upgrade failed", "board_id", boardID, "error", err)
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()

	events, cancel := h.deps.Broadcaster.SubscribeBoard(boardID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Drain control frames so pings are answered and closes detected
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := ws.writeJSON(event); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
