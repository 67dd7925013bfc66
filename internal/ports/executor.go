package ports

import (
	"context"
)

// ExecSpec describes one executor subprocess launch
type ExecSpec struct {
	AutoApprove  bool
	ExecutorType string
	Images       []string
	Prompt       string
	WorkingDir   string
}

// ExecResult is the terminal outcome of an executor subprocess
type ExecResult struct {
	Err      error
	ExitCode int
}

// ExecHandle supervises one running executor subprocess. Lines delivers raw
// stdout chunks until the process exits; Result delivers exactly one value
// after Lines is closed.
type ExecHandle interface {
	// PID returns the subprocess pid
	PID() int

	// Lines streams raw output, one chunk per stdout line
	Lines() <-chan string

	// Result delivers the exit outcome once
	Result() <-chan ExecResult

	// Stop terminates the subprocess, graceful signal first then forced
	Stop() error
}

// ExecutorInfo describes a known agent CLI
type ExecutorInfo struct {
	Available    bool     `json:"available"`
	Capabilities []string `json:"capabilities"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
}

// ExecutorRunner spawns agent CLI subprocesses
type ExecutorRunner interface {
	// Start spawns the executor for the spec. Spawn failures (binary not
	// found, permission denied) are returned synchronously.
	Start(ctx context.Context, spec ExecSpec) (ExecHandle, error)

	// ListExecutors returns the known executor catalog with availability
	ListExecutors() []ExecutorInfo
}
