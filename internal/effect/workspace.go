package effect

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// gitWorkspaceTimeout bounds worktree-class git subprocess calls.
const gitWorkspaceTimeout = 60 * time.Second

// GitWorkspaceAdapter implements WorkspaceAdapter. Plain workspaces are a
// created directory; worktree workspaces shell out to the git CLI, with
// go-git's plumbing package used only to validate the requested
// branch/ref name before it reaches a shell argument — go-git's own
// worktree API does not support the add-existing-branch flows runbooks
// need.
type GitWorkspaceAdapter struct {
	Root string // parent directory workspaces are created under
}

func (g *GitWorkspaceAdapter) Create(ctx context.Context, ws CreateWorkspace) (string, error) {
	path := ws.Path
	if path == "" {
		path = filepath.Join(g.Root, ws.Namespace, ws.JobID)
	}

	switch ws.Kind {
	case "plain":
		if err := os.MkdirAll(path, 0o755); err != nil {
			return "", fmt.Errorf("create plain workspace: %w", err)
		}
		return path, nil
	case "worktree":
		if err := validateRef(ws.BaseRef); err != nil {
			return "", fmt.Errorf("invalid base ref %q: %w", ws.BaseRef, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create worktree parent dir: %w", err)
		}
		ctx, cancel := context.WithTimeout(ctx, gitWorkspaceTimeout)
		defer cancel()
		if err := runGit(ctx, g.Root, "worktree", "add", path, ws.BaseRef); err != nil {
			return "", fmt.Errorf("git worktree add: %w", err)
		}
		return path, nil
	default:
		return "", fmt.Errorf("unknown workspace kind %q", ws.Kind)
	}
}

func (g *GitWorkspaceAdapter) Delete(ctx context.Context, ws DeleteWorkspace) error {
	path := ws.Path
	if path == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, gitWorkspaceTimeout)
	defer cancel()
	if err := runGit(ctx, g.Root, "worktree", "remove", "--force", path); err != nil {
		// Not every workspace is a worktree; fall back to a plain removal.
		return os.RemoveAll(path)
	}
	return nil
}

func validateRef(ref string) error {
	if ref == "" {
		return nil
	}
	if !plumbing.IsHash(ref) && !plumbing.ReferenceName("refs/heads/"+ref).IsBranch() {
		return fmt.Errorf("ref %q is neither a commit hash nor a valid branch name", ref)
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...) //nolint:gosec // G204: args are validated runbook-derived refs/paths
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}
