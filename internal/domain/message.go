package domain

import "time"

// MessageRole identifies who produced a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// MessageStatus tracks whether a user message has been dispatched yet
type MessageStatus string

const (
	MessageQueued    MessageStatus = "queued"
	MessageSent      MessageStatus = "sent"
	MessageDiscarded MessageStatus = "discarded"
)

// Message is one persisted chat entry for a task. Ordering for display and
// replay is by Sequence, a per-task counter assigned at creation and never
// reused. Wall-clock timestamps are informational only.
type Message struct {
	Content   string
	CreatedAt time.Time
	ID        string
	Role      MessageRole
	Sequence  int64
	Status    MessageStatus
	TaskID    string
}

// QueuedMessage is a transient queue entry awaiting dispatch. Once dispatched
// it materializes into a new ExecutorSession; the user Message for history is
// written at queue time.
type QueuedMessage struct {
	ExecutorType string
	Images       []string
	MessageID    string
	Prompt       string
	QueuedAt     time.Time
}
