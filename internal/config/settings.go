package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultScriptHookTimeoutSeconds bounds script hook execution time
const DefaultScriptHookTimeoutSeconds = 300

// DefaultExecutor is the agent CLI used when none is requested
const DefaultExecutor = "claude"

// DefaultIntakeColumn receives tasks created by the periodic scheduler
const DefaultIntakeColumn = "backlog"

// Settings represents the structure of ~/.quadro/settings.json
type Settings struct {
	Debug                    *bool  `json:"debug,omitempty"`
	DefaultExecutor          string `json:"default_executor,omitempty"`
	IntakeColumn             string `json:"intake_column,omitempty"`
	MaxLogFiles              *int   `json:"max_log_files,omitempty"`
	ScriptHookTimeoutSeconds *int   `json:"script_hook_timeout_seconds,omitempty"`
	SoundsEnabled            *bool  `json:"sounds_enabled,omitempty"`
	WorktreeBase             string `json:"worktree_base,omitempty"`
}

// LoadSettings reads settings from ~/.quadro/settings.json.
// A missing file is not an error; defaults apply.
func LoadSettings() (*Settings, error) {
	settingsPath := filepath.Join(GetHomeDir(), "settings.json")

	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", settingsPath, err)
	}

	return &settings, nil
}

// ScriptHookTimeout returns the configured script hook timeout in seconds
func (s *Settings) ScriptHookTimeout() int {
	if s != nil && s.ScriptHookTimeoutSeconds != nil && *s.ScriptHookTimeoutSeconds > 0 {
		return *s.ScriptHookTimeoutSeconds
	}
	return DefaultScriptHookTimeoutSeconds
}

// Executor returns the configured default executor type
func (s *Settings) Executor() string {
	if s != nil && s.DefaultExecutor != "" {
		return s.DefaultExecutor
	}
	return DefaultExecutor
}

// Intake returns the column periodical tasks are created in
func (s *Settings) Intake() string {
	if s != nil && s.IntakeColumn != "" {
		return s.IntakeColumn
	}
	return DefaultIntakeColumn
}

// SoundsOn reports whether hook notification sounds are enabled
func (s *Settings) SoundsOn() bool {
	if s != nil && s.SoundsEnabled != nil {
		return *s.SoundsEnabled
	}
	return true
}

// GetHomeDir returns the quadro home directory (QUADRO_HOME or ~/.quadro)
func GetHomeDir() string {
	if envHome := os.Getenv("QUADRO_HOME"); envHome != "" {
		return ExpandPath(envHome)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".quadro"
	}
	return filepath.Join(homeDir, ".quadro")
}

// GetDBPath returns the path to the sqlite database
func GetDBPath() string {
	return filepath.Join(GetHomeDir(), "state.db")
}

// GetWorktreeBase returns the base directory for task worktrees
func GetWorktreeBase(settings *Settings) string {
	if settings != nil && settings.WorktreeBase != "" {
		return ExpandPath(settings.WorktreeBase)
	}
	return filepath.Join(GetHomeDir(), "worktrees")
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
}
