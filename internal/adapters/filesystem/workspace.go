// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// WorkspaceAdapter implements secondary.WorkspaceAdapter with the git binary.
type WorkspaceAdapter struct {
	repoDir       string
	deploymentDir string
}

// NewWorkspaceAdapter creates a new git workspace adapter.
// Origins are cloned under repoDir; instances are checked out under deploymentDir.
func NewWorkspaceAdapter(repoDir, deploymentDir string) (*WorkspaceAdapter, error) {
	if repoDir == "" || deploymentDir == "" {
		return nil, fmt.Errorf("repo and deployment directories must be set")
	}

	return &WorkspaceAdapter{
		repoDir:       repoDir,
		deploymentDir: deploymentDir,
	}, nil
}

// Clone clones url into path, creating parent directories.
func (a *WorkspaceAdapter) Clone(ctx context.Context, url, path string) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := runGit(ctx, parent, "clone", url, path); err != nil {
		return fmt.Errorf("git clone failed: %w", err)
	}
	return nil
}

// Pull updates the checked out branch of the repository at repoPath.
func (a *WorkspaceAdapter) Pull(ctx context.Context, repoPath string) error {
	if err := runGit(ctx, repoPath, "pull"); err != nil {
		return fmt.Errorf("git pull failed: %w", err)
	}
	return nil
}

// LatestCommit returns the HEAD commit of the repository at repoPath.
func (a *WorkspaceAdapter) LatestCommit(ctx context.Context, repoPath string) (string, error) {
	out, err := runGitOutput(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CommitDate returns the committer date of commit.
func (a *WorkspaceAdapter) CommitDate(ctx context.Context, repoPath, commit string) (time.Time, error) {
	out, err := runGitOutput(ctx, repoPath, "show", "-s", "--format=%cI", commit)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read commit date: %w", err)
	}

	date, err := time.Parse(time.RFC3339, strings.TrimSpace(out))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse commit date %q: %w", strings.TrimSpace(out), err)
	}
	return date, nil
}

// IsValidCommit reports whether commit names a commit in the repository history.
func (a *WorkspaceAdapter) IsValidCommit(ctx context.Context, repoPath, commit string) (bool, error) {
	if strings.TrimSpace(commit) == "" || strings.HasPrefix(commit, "-") {
		return false, nil
	}

	err := runGit(ctx, repoPath, "cat-file", "-e", commit+"^{commit}")
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check commit: %w", err)
}

// ListWorktrees returns the HEAD commit of every worktree of the repository.
func (a *WorkspaceAdapter) ListWorktrees(ctx context.Context, repoPath string) ([]string, error) {
	out, err := runGitOutput(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git worktree list failed: %w", err)
	}

	var heads []string
	for _, line := range strings.Split(out, "\n") {
		if head, ok := strings.CutPrefix(strings.TrimSpace(line), "HEAD "); ok {
			heads = append(heads, head)
		}
	}
	return heads, nil
}

// AddWorktree checks commit out, detached, at targetPath. It returns
// secondary.ErrWorktreeExists only when targetPath is already a worktree of
// repoPath at commit; any other occupant of targetPath is an error.
func (a *WorkspaceAdapter) AddWorktree(ctx context.Context, repoPath, targetPath, commit string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "worktree", "add", "--detach", targetPath, commit)
	cmd.Dir = repoPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "already exists") {
			ok, listErr := a.worktreeAt(ctx, repoPath, targetPath, commit)
			if listErr != nil {
				return listErr
			}
			if ok {
				return secondary.ErrWorktreeExists
			}
		}
		return fmt.Errorf("git worktree add failed: %w: %s", err, string(output))
	}

	return nil
}

// worktreeAt reports whether targetPath is a worktree of repoPath checked out at commit.
func (a *WorkspaceAdapter) worktreeAt(ctx context.Context, repoPath, targetPath, commit string) (bool, error) {
	out, err := runGitOutput(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git worktree list failed: %w", err)
	}

	want := canonicalPath(targetPath)
	var path string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if p, ok := strings.CutPrefix(line, "worktree "); ok {
			path = canonicalPath(p)
			continue
		}
		if head, ok := strings.CutPrefix(line, "HEAD "); ok && path == want {
			return strings.HasPrefix(head, commit), nil
		}
	}
	return false, nil
}

// canonicalPath resolves symlinks so temp directories compare equal to what git reports.
func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// DirectoryExists checks if a directory exists.
func (a *WorkspaceAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check directory: %w", err)
	}
	return info.IsDir(), nil
}

// RepoPath returns where an origin named name is cloned (e.g., ~/.expfactory/repos/experiments).
func (a *WorkspaceAdapter) RepoPath(name string) string {
	return filepath.Join(a.repoDir, name)
}

// DeploymentPath returns where commit of the origin at originPath is checked out,
// keyed by the final path element without any extension.
func (a *WorkspaceAdapter) DeploymentPath(originPath, commit string) string {
	base := filepath.Base(originPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(a.deploymentDir, stem, commit)
}

// runGit executes a git command in dir and returns an error if it fails.
func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// runGitOutput executes a git command in dir and returns the stdout.
func runGitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Ensure WorkspaceAdapter implements the interface
var _ secondary.WorkspaceAdapter = (*WorkspaceAdapter)(nil)
