package ports

// WorktreeManager creates and removes git worktrees for tasks
type WorktreeManager interface {
	// Create creates a worktree at path for branch, creating the branch if it
	// does not exist yet.
	Create(repoPath, worktreePath, branchName string) error

	// Remove removes the worktree at path
	Remove(repoPath, worktreePath string) error

	// BuildPath constructs the worktree path for a task under the base dir
	BuildPath(base, repoInfo, taskName string) string

	// BranchForTask derives the worktree branch name from a task title
	BranchForTask(title string) (string, error)
}
