package domain

import "time"

// HookExecutionStatus is the lifecycle state of a single hook invocation
type HookExecutionStatus string

const (
	ExecutionPending   HookExecutionStatus = "pending"
	ExecutionRunning   HookExecutionStatus = "running"
	ExecutionCompleted HookExecutionStatus = "completed"
	ExecutionFailed    HookExecutionStatus = "failed"
	ExecutionCancelled HookExecutionStatus = "cancelled"
	ExecutionSkipped   HookExecutionStatus = "skipped"
)

// SkipReason explains why a pending hook execution never ran
type SkipReason string

const (
	SkipReasonError         SkipReason = "error"
	SkipReasonDisabled      SkipReason = "disabled"
	SkipReasonColumnChange  SkipReason = "column_change"
	SkipReasonServerRestart SkipReason = "server_restart"
	SkipReasonUserCancelled SkipReason = "user_cancelled"
)

// HookExecution is one immutable ledger entry for a hook invocation.
// Entries are append-only; once a terminal status is recorded the entry is
// never mutated again. Hook definition values are snapshotted at queue time.
type HookExecution struct {
	ChainPosition    int
	ColumnHookID     string
	CommandSnapshot  string
	CompletedAt      *time.Time
	ErrorMessage     string
	HookKindSnapshot HookKind
	HookNameSnapshot string
	ID               string
	PromptSnapshot   string
	QueuedAt         time.Time
	SkipReason       SkipReason
	StartedAt        *time.Time
	Status           HookExecutionStatus
	TaskID           string
	Transparent      bool
}

// IsTerminal reports whether the execution reached a final status
func (s HookExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled, ExecutionSkipped:
		return true
	}
	return false
}

// CanTransition validates the ledger status state machine:
// Pending → Running → {Completed|Failed}, Pending → {Cancelled|Skipped}.
func (s HookExecutionStatus) CanTransition(to HookExecutionStatus) bool {
	switch s {
	case ExecutionPending:
		switch to {
		case ExecutionRunning, ExecutionCancelled, ExecutionSkipped:
			return true
		}
	case ExecutionRunning:
		switch to {
		case ExecutionCompleted, ExecutionFailed, ExecutionSkipped:
			// Skipped from running only happens on server-restart reconciliation
			return true
		}
	}
	return false
}

// CountsAsExecuted reports whether the entry satisfies an execute-once
// binding. Completed runs and skips caused by a disabled column both count;
// structural skips (column change, restart) do not.
func (e *HookExecution) CountsAsExecuted() bool {
	if e.Status == ExecutionCompleted {
		return true
	}
	return e.Status == ExecutionSkipped && e.SkipReason == SkipReasonDisabled
}
