package secondary

import (
	"context"
	"time"
)

// WorkspaceAdapter defines the secondary port for git repository and worktree operations.
type WorkspaceAdapter interface {
	// Repository operations
	Clone(ctx context.Context, url, path string) error
	Pull(ctx context.Context, repoPath string) error
	LatestCommit(ctx context.Context, repoPath string) (string, error)
	CommitDate(ctx context.Context, repoPath, commit string) (time.Time, error)
	IsValidCommit(ctx context.Context, repoPath, commit string) (bool, error)

	// Worktree operations
	// ListWorktrees returns the HEAD commit of every worktree of the repository.
	ListWorktrees(ctx context.Context, repoPath string) ([]string, error)
	// AddWorktree checks commit out at targetPath; returns ErrWorktreeExists if it is already there.
	AddWorktree(ctx context.Context, repoPath, targetPath, commit string) error

	// Directory operations
	DirectoryExists(ctx context.Context, path string) (bool, error)

	// Path resolution
	RepoPath(name string) string
	DeploymentPath(originPath, commit string) string
}
