package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"quadro/internal/domain"
	"quadro/internal/logging"
	"quadro/internal/ports"
)

// stopGracePeriod is how long Stop waits after SIGTERM before killing
const stopGracePeriod = 5 * time.Second

// Runner spawns agent CLI subprocesses and supervises their output streams
type Runner struct {
	executors []executorDef
}

var _ ports.ExecutorRunner = (*Runner)(nil)

// NewRunner creates a runner with the default executor catalog
func NewRunner() *Runner {
	return &Runner{executors: defaultExecutors()}
}

// Start implements ports.ExecutorRunner
func (r *Runner) Start(ctx context.Context, spec ports.ExecSpec) (ports.ExecHandle, error) {
	def, ok := r.lookup(spec.ExecutorType)
	if !ok {
		return nil, fmt.Errorf("executor %q: %w", spec.ExecutorType, domain.ErrUnknownExecutor)
	}

	binary, err := exec.LookPath(def.binary)
	if err != nil {
		return nil, fmt.Errorf("executor %q not installed: %w", spec.ExecutorType, err)
	}

	cmd := exec.Command(binary, def.buildArgs(spec)...)
	cmd.Dir = spec.WorkingDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start executor %q: %w", spec.ExecutorType, err)
	}

	logging.Logger.Info("Executor subprocess started",
		"executor", spec.ExecutorType,
		"pid", cmd.Process.Pid,
		"working_dir", spec.WorkingDir,
	)

	h := &handle{
		cmd:    cmd,
		done:   make(chan struct{}),
		lines:  make(chan string, 64),
		result: make(chan ports.ExecResult, 1),
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		// Agent CLIs emit very long JSON lines
		buf := make([]byte, 0, 1024*1024) // 1MB buffer
		scanner.Buffer(buf, 10*1024*1024) // 10MB max line size

		for scanner.Scan() {
			h.lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logging.Logger.Warn("Executor stdout read ended with error",
				"executor", spec.ExecutorType, "error", err)
		}
		close(h.lines)

		waitErr := cmd.Wait()
		close(h.done)

		result := ports.ExecResult{}
		if waitErr != nil {
			result.Err = fmt.Errorf("%w: %s", waitErr, tail(stderr.String(), 2048))
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
			} else {
				result.ExitCode = -1
			}
		}
		h.result <- result
		close(h.result)
	}()

	return h, nil
}

// ListExecutors implements ports.ExecutorRunner
func (r *Runner) ListExecutors() []ports.ExecutorInfo {
	infos := make([]ports.ExecutorInfo, len(r.executors))
	for i, def := range r.executors {
		infos[i] = ports.ExecutorInfo{
			Available:    isAvailable(def.binary),
			Capabilities: def.capabilities,
			Name:         def.name,
			Type:         def.typeName,
		}
	}
	return infos
}

func (r *Runner) lookup(typeName string) (executorDef, bool) {
	for _, def := range r.executors {
		if def.typeName == typeName {
			return def, true
		}
	}
	return executorDef{}, false
}

// handle supervises one running subprocess
type handle struct {
	cmd      *exec.Cmd
	done     chan struct{}
	lines    chan string
	result   chan ports.ExecResult
	stopOnce sync.Once
}

var _ ports.ExecHandle = (*handle)(nil)

func (h *handle) PID() int { return h.cmd.Process.Pid }

func (h *handle) Lines() <-chan string { return h.lines }

func (h *handle) Result() <-chan ports.ExecResult { return h.result }

// Stop terminates the subprocess, SIGTERM first and SIGKILL after a grace
// period. Safe to call more than once.
func (h *handle) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		if sigErr := h.cmd.Process.Signal(syscall.SIGTERM); sigErr != nil {
			// Process may already be gone
			logging.Logger.Debug("SIGTERM failed", "pid", h.cmd.Process.Pid, "error", sigErr)
		}

		select {
		case <-h.done:
		case <-time.After(stopGracePeriod):
			logging.Logger.Warn("Executor did not exit after SIGTERM, killing",
				"pid", h.cmd.Process.Pid)
			err = h.cmd.Process.Kill()
		}
	})
	return err
}

// tail returns at most the last n bytes of s
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
