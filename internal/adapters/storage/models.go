package storage

import "time"

// HookModel is the GORM model for the hook catalog
type HookModel struct {
	AgentExecutor string `gorm:"default:''"`
	AgentPrompt   string `gorm:"default:''"`
	AutoApprove   bool   `gorm:"not null;default:false"`
	BoardID       string `gorm:"not null;index:idx_hooks_board"`
	Command       string `gorm:"default:''"`
	CreatedAt     time.Time
	ID            string `gorm:"primaryKey"`
	Kind          string `gorm:"not null;check:kind IN ('script','agent')"`
	Name          string `gorm:"not null"`
	System        bool   `gorm:"not null;default:false"`
	UpdatedAt     time.Time
}

// TableName specifies the table name for GORM
func (HookModel) TableName() string { return "hooks" }

// ColumnHookModel is the GORM model for column hook bindings
type ColumnHookModel struct {
	ColumnID     string `gorm:"not null;index:idx_column_hooks_column"`
	CreatedAt    time.Time
	ExecuteOnce  bool   `gorm:"not null;default:false"`
	HookID       string `gorm:"not null;index:idx_column_hooks_hook"`
	ID           string `gorm:"primaryKey"`
	Position     int    `gorm:"not null;default:0"`
	// no default tag: GORM would drop an explicit false on insert
	Removable    bool   `gorm:"not null"`
	Sound        *string
	TargetColumn *string
	Transparent  bool `gorm:"not null;default:false"`
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (ColumnHookModel) TableName() string { return "column_hooks" }

// HookExecutionModel is the GORM model for the hook execution ledger
type HookExecutionModel struct {
	ChainPosition    int    `gorm:"not null;default:0"`
	ColumnHookID     string `gorm:"not null;index:idx_hook_executions_binding"`
	CommandSnapshot  string `gorm:"default:''"`
	CompletedAt      *time.Time
	CreatedAt        time.Time
	ErrorMessage     string `gorm:"default:''"`
	HookKindSnapshot string `gorm:"not null;default:'script'"`
	HookNameSnapshot string `gorm:"not null;default:''"`
	ID               string `gorm:"primaryKey"`
	PromptSnapshot   string `gorm:"default:''"`
	QueuedAt         time.Time `gorm:"not null;index:idx_hook_executions_queued"`
	SkipReason       string    `gorm:"default:''"`
	StartedAt        *time.Time
	Status           string `gorm:"not null;default:'pending';index:idx_hook_executions_status;check:status IN ('pending','running','completed','failed','cancelled','skipped')"`
	TaskID           string `gorm:"not null;index:idx_hook_executions_task"`
	Transparent      bool   `gorm:"not null;default:false"`
	UpdatedAt        time.Time
}

// TableName specifies the table name for GORM
func (HookExecutionModel) TableName() string { return "hook_executions" }

// ExecutorSessionModel is the GORM model for executor sessions
type ExecutorSessionModel struct {
	CompletedAt      *time.Time
	CreatedAt        time.Time
	ErrorMessage     string `gorm:"default:''"`
	ExecutorType     string `gorm:"not null"`
	ExitCode         *int
	ID               string `gorm:"primaryKey"`
	Prompt           string `gorm:"default:''"`
	StartedAt        time.Time
	Status           string `gorm:"not null;default:'pending';index:idx_executor_sessions_status;check:status IN ('pending','running','completed','failed','stopped')"`
	StopReason       string `gorm:"default:''"`
	TaskID           string `gorm:"not null;index:idx_executor_sessions_task"`
	UpdatedAt        time.Time
	WorkingDirectory string `gorm:"default:''"`
}

// TableName specifies the table name for GORM
func (ExecutorSessionModel) TableName() string { return "executor_sessions" }

// MessageModel is the GORM model for task chat messages
type MessageModel struct {
	Content   string `gorm:"not null;default:''"`
	CreatedAt time.Time
	ID        string `gorm:"primaryKey"`
	Role      string `gorm:"not null;check:role IN ('user','assistant','system','tool')"`
	Sequence  int64  `gorm:"not null;uniqueIndex:idx_messages_task_seq"`
	Status    string `gorm:"not null;default:'queued'"`
	TaskID    string `gorm:"not null;uniqueIndex:idx_messages_task_seq;index:idx_messages_task"`
	UpdatedAt time.Time
}

// TableName specifies the table name for GORM
func (MessageModel) TableName() string { return "messages" }

// TaskSequenceModel tracks the per-task message sequence counter so numbers
// are never reused even after deletions.
type TaskSequenceModel struct {
	NextSequence int64  `gorm:"not null;default:1"`
	TaskID       string `gorm:"primaryKey"`
	UpdatedAt    time.Time
}

// TableName specifies the table name for GORM
func (TaskSequenceModel) TableName() string { return "task_sequences" }

// PeriodicalTaskModel is the GORM model for scheduled task templates
type PeriodicalTaskModel struct {
	AutoStart       bool   `gorm:"not null;default:false"`
	BoardID         string `gorm:"not null;index:idx_periodical_tasks_board"`
	CreatedAt       time.Time
	Description     string `gorm:"default:''"`
	// no default tag: GORM would drop an explicit false on insert
	Enabled         bool   `gorm:"not null;index:idx_periodical_tasks_enabled"`
	ExecutionCount  int    `gorm:"not null;default:0"`
	Executor        string `gorm:"default:''"`
	ID              string `gorm:"primaryKey"`
	LastExecutedAt  *time.Time
	NextExecutionAt time.Time `gorm:"not null;index:idx_periodical_tasks_next"`
	Schedule        string    `gorm:"not null"`
	Title           string    `gorm:"not null"`
	UpdatedAt       time.Time
}

// TableName specifies the table name for GORM
func (PeriodicalTaskModel) TableName() string { return "periodical_tasks" }

// TaskModel is the engine's view of the board's tasks table. Only the
// status-summary fields are written by the engine.
type TaskModel struct {
	AgentStatus        string `gorm:"default:'idle'"`
	AgentStatusMessage string `gorm:"default:''"`
	BoardID            string `gorm:"not null;index:idx_tasks_board"`
	ColumnID           string `gorm:"not null;index:idx_tasks_column"`
	CreatedAt          time.Time
	Description        string `gorm:"default:''"`
	ErrorMessage       string `gorm:"default:''"`
	ID                 string `gorm:"primaryKey"`
	InProgress         bool   `gorm:"not null;default:false"`
	Title              string `gorm:"not null;default:''"`
	UpdatedAt          time.Time
	WorkingDirectory   string `gorm:"default:''"`
	WorktreeBranch     string `gorm:"default:''"`
	WorktreePath       string `gorm:"default:''"`
}

// TableName specifies the table name for GORM
func (TaskModel) TableName() string { return "tasks" }

// ColumnModel is the engine's view of the board's columns table
type ColumnModel struct {
	BoardID            string `gorm:"not null;index:idx_columns_board"`
	CreatedAt          time.Time
	// no default tag: GORM would drop an explicit false on insert
	HooksEnabled       bool   `gorm:"not null"`
	ID                 string `gorm:"primaryKey"`
	MaxConcurrentTasks *int
	Name               string `gorm:"not null;default:''"`
	UpdatedAt          time.Time
}

// TableName specifies the table name for GORM
func (ColumnModel) TableName() string { return "columns" }
