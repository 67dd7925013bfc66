package domain

import "errors"

var (
	ErrExecutorAlreadyRunning = errors.New("executor already running for task")
	ErrExecutorNotRunning     = errors.New("no executor running for task")
	ErrHookNotFound           = errors.New("hook not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrTaskNotFound           = errors.New("task not found")
	ErrUnknownExecutor        = errors.New("unknown executor type")
)
