package git

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"quadro/internal/logging"
	"quadro/internal/ports"
)

// Manager creates and removes git worktrees for tasks using the git CLI
type Manager struct{}

var _ ports.WorktreeManager = (*Manager)(nil)

// NewManager creates a worktree manager
func NewManager() *Manager {
	return &Manager{}
}

// Create implements ports.WorktreeManager. If the branch exists locally or
// remotely it is checked out; otherwise a new branch is created.
func (m *Manager) Create(repoPath, worktreePath, branchName string) error {
	logging.Logger.Info("Creating worktree",
		"repo_path", repoPath, "worktree_path", worktreePath, "branch", branchName)

	if err := validateBranchName(branchName); err != nil {
		return fmt.Errorf("invalid branch name: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0755); err != nil {
		return fmt.Errorf("failed to create worktree base directory: %w", err)
	}

	// Best-effort fetch so the worktree starts from the latest remote state;
	// the user might be offline, so failure is not fatal
	fetchCmd := exec.Command("git", "fetch", "origin")
	fetchCmd.Dir = repoPath
	if output, err := fetchCmd.CombinedOutput(); err != nil {
		logging.Logger.Warn("Git fetch origin failed (continuing anyway)",
			"error", err, "output", string(output))
	}

	var worktreeCmd *exec.Cmd
	if branchExists(repoPath, branchName) {
		logging.Logger.Debug("Checking out existing branch in worktree", "branch", branchName)
		worktreeCmd = exec.Command("git", "worktree", "add", worktreePath, branchName)
	} else {
		logging.Logger.Debug("Creating new branch in worktree", "branch", branchName)
		worktreeCmd = exec.Command("git", "worktree", "add", worktreePath, "-b", branchName)
	}
	worktreeCmd.Dir = repoPath

	if output, err := worktreeCmd.CombinedOutput(); err != nil {
		logging.Logger.Error("Git worktree add failed", "error", err, "output", string(output))
		return fmt.Errorf("failed to create worktree: %w\nOutput: %s", err, string(output))
	}

	logging.Logger.Info("Git worktree created", "path", worktreePath, "branch", branchName)
	return nil
}

// Remove implements ports.WorktreeManager. Removing an already absent
// worktree is not an error.
func (m *Manager) Remove(repoPath, worktreePath string) error {
	logging.Logger.Info("Removing worktree", "repo_path", repoPath, "worktree_path", worktreePath)

	if _, err := os.Stat(worktreePath); os.IsNotExist(err) {
		logging.Logger.Warn("Worktree path does not exist", "path", worktreePath)
		return nil
	}

	// --force allows removal with uncommitted changes; task worktrees are
	// disposable development environments
	cmd := exec.Command("git", "worktree", "remove", "--force", worktreePath)
	cmd.Dir = repoPath

	if output, err := cmd.CombinedOutput(); err != nil {
		logging.Logger.Error("Git worktree remove failed", "error", err, "output", string(output))
		return fmt.Errorf("failed to remove worktree: %w\nOutput: %s", err, string(output))
	}

	return nil
}

// BuildPath implements ports.WorktreeManager. With repoInfo in "owner/repo"
// form the layout is base/owner/repo/taskName; otherwise base/taskName.
func (m *Manager) BuildPath(base, repoInfo, taskName string) string {
	taskName = sanitizePathComponent(taskName)

	if repoInfo != "" {
		parts := strings.SplitN(repoInfo, "/", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			owner := sanitizePathComponent(parts[0])
			repo := sanitizePathComponent(parts[1])
			return filepath.Join(base, owner, repo, taskName)
		}
	}

	return filepath.Join(base, taskName)
}

// branchExists checks if a branch exists locally or remotely
func branchExists(repoPath, branchName string) bool {
	cmd := exec.Command("git", "show-ref", "--verify", fmt.Sprintf("refs/heads/%s", branchName))
	cmd.Dir = repoPath
	if output, err := cmd.Output(); err == nil && len(output) > 0 {
		return true
	}

	cmd = exec.Command("git", "ls-remote", "--heads", "origin", branchName)
	cmd.Dir = repoPath
	output, err := cmd.Output()
	return err == nil && len(strings.TrimSpace(string(output))) > 0
}

// BranchNameForTask derives a branch name from a task title, e.g.
// "Fix login bug" becomes "task/fix-login-bug".
func BranchNameForTask(title string) (string, error) {
	sanitized, err := sanitizeBranchName(title)
	if err != nil {
		return "", err
	}
	return "task/" + sanitized, nil
}

// BranchForTask implements ports.WorktreeManager
func (m *Manager) BranchForTask(title string) (string, error) {
	return BranchNameForTask(title)
}
