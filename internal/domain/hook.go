package domain

import "time"

// HookKind distinguishes script hooks from agent hooks
type HookKind string

const (
	HookKindScript HookKind = "script"
	HookKindAgent  HookKind = "agent"
)

// Hook is an automation bound to board columns. System hooks are immutable
// built-ins; custom hooks are created per board. Editing a hook only affects
// future runs: ledger entries snapshot the values used at execution time.
type Hook struct {
	AgentExecutor string
	AgentPrompt   string
	AutoApprove   bool
	BoardID       string
	Command       string
	CreatedAt     time.Time
	ID            string
	Kind          HookKind
	Name          string
	System        bool
}

// HookSettings holds per-binding behavioral settings. Explicit optional
// fields instead of an open map; validated when bindings are created.
type HookSettings struct {
	Sound        *string `json:"sound,omitempty"`
	TargetColumn *string `json:"target_column,omitempty"`
}

// ColumnHookBinding associates a hook with a column. Position defines
// execution order within the column (ascending, ties broken by binding id).
type ColumnHookBinding struct {
	ColumnID    string
	ExecuteOnce bool
	HookID      string
	ID          string
	Position    int
	Removable   bool
	Settings    HookSettings
	Transparent bool
}
