package domain

import "time"

// SessionStatus is the lifecycle state of an executor session
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionStopped   SessionStatus = "stopped"
)

// AgentStatus is the task-level status surfaced to the board UI
type AgentStatus string

const (
	AgentIdle      AgentStatus = "idle"
	AgentExecuting AgentStatus = "executing"
	AgentError     AgentStatus = "error"
)

// ExecutorSession is one run of an agent CLI subprocess for one task.
// At most one session per task may be pending or running at a time.
type ExecutorSession struct {
	CompletedAt      *time.Time
	ErrorMessage     string
	ExecutorType     string
	ExitCode         *int
	ID               string
	Prompt           string
	StartedAt        time.Time
	Status           SessionStatus
	StopReason       string
	TaskID           string
	WorkingDirectory string
}

// IsTerminal reports whether the session reached a final status
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionStopped:
		return true
	}
	return false
}

// IsActive reports whether the session occupies the task's executor slot
func (s SessionStatus) IsActive() bool {
	return s == SessionPending || s == SessionRunning
}
