package domain

import "time"

// EventType identifies an engine event on the task or board stream
type EventType string

const (
	// Per-task executor lifecycle events
	EventExecutorStarted   EventType = "executor_started"
	EventExecutorOutput    EventType = "executor_output"
	EventExecutorCompleted EventType = "executor_completed"
	EventExecutorError     EventType = "executor_error"
	EventExecutorStopped   EventType = "executor_stopped"
	EventExecutorTodos     EventType = "executor_todos"

	// Per-task hook lifecycle events
	EventHookQueued    EventType = "hook_execution_queued"
	EventHookStarted   EventType = "hook_execution_started"
	EventHookCompleted EventType = "hook_execution_completed"
	EventHookFailed    EventType = "hook_execution_failed"
	EventHookSkipped   EventType = "hook_execution_skipped"

	// Per-board events
	EventClientAction EventType = "client_action"
)

// OutputType classifies executor output chunks
type OutputType string

const (
	OutputRaw    OutputType = "raw"
	OutputParsed OutputType = "parsed"
)

// Todo is one entry of an executor's todo list, as reported by the agent
type Todo struct {
	ActiveForm string `json:"activeForm"`
	Content    string `json:"content"`
	Status     string `json:"status"`
}

// Event is a structured engine event. Task events carry TaskID; board events
// (client actions) carry BoardID. Payload keys match the wire protocol.
type Event struct {
	BoardID   string         `json:"board_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	TaskID    string         `json:"task_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
}

// NewTaskEvent builds a per-task event
func NewTaskEvent(eventType EventType, taskID string, payload map[string]any) Event {
	return Event{
		Payload:   payload,
		TaskID:    taskID,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// NewBoardEvent builds a per-board event
func NewBoardEvent(eventType EventType, boardID string, payload map[string]any) Event {
	return Event{
		BoardID:   boardID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}

// NewPlaySoundAction builds the client_action event for hook notification sounds
func NewPlaySoundAction(boardID, sound string) Event {
	return NewBoardEvent(EventClientAction, boardID, map[string]any{
		"type":  "play-sound",
		"sound": sound,
	})
}
