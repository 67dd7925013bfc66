package domain

import "time"

// Task is the engine's read view of a board card. The task store itself is
// owned by the board application; the engine reads column placement and
// writes back status-summary fields only.
type Task struct {
	AgentStatus        AgentStatus
	AgentStatusMessage string
	BoardID            string
	ColumnID           string
	ErrorMessage       string
	ID                 string
	InProgress         bool
	Title              string
	UpdatedAt          time.Time
	WorkingDirectory   string
	WorktreeBranch     string
	WorktreePath       string
}

// ColumnSettings are the per-column knobs the engine honors.
// MaxConcurrentTasks nil means the limit is disabled.
type ColumnSettings struct {
	HooksEnabled       bool
	MaxConcurrentTasks *int
}

// Column is the engine's read view of a board column
type Column struct {
	BoardID  string
	ID       string
	Name     string
	Settings ColumnSettings
}
