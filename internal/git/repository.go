package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// diffFlags keep the output parseable whatever the user's git config says.
var diffFlags = []string{"--unified=3", "--no-color", "--no-ext-diff"}

// Repo runs git commands against a local working tree.
type Repo struct {
	path string
}

// NewRepo opens the repository containing path.
func NewRepo(ctx context.Context, path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	r := &Repo{path: abs}
	if r.path, err = r.Root(ctx); err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return r, nil
}

// Path returns the repository root.
func (r *Repo) Path() string {
	return r.path
}

// StagedDiff returns the changes staged in the index.
func (r *Repo) StagedDiff(ctx context.Context) (*Diff, error) {
	return r.diff(ctx, "--cached")
}

// BranchDiff returns the changes of HEAD since it forked from base, the
// same view a pull request into base would show.
func (r *Repo) BranchDiff(ctx context.Context, base string) (*Diff, error) {
	mergeBase, err := r.output(ctx, "merge-base", base, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("finding merge base with %s: %w", base, err)
	}
	return r.diff(ctx, mergeBase, "HEAD")
}

// CurrentBranch returns the checked out branch name, "HEAD" when detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.output(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// HeadSHA returns the commit checked out.
func (r *Repo) HeadSHA(ctx context.Context) (string, error) {
	return r.output(ctx, "rev-parse", "HEAD")
}

// Author returns the configured user name, or "" when unset.
func (r *Repo) Author(ctx context.Context) string {
	name, _ := r.output(ctx, "config", "user.name")
	return name
}

// Root returns the top level directory of the working tree.
func (r *Repo) Root(ctx context.Context) (string, error) {
	return r.output(ctx, "rev-parse", "--show-toplevel")
}

func (r *Repo) diff(ctx context.Context, args ...string) (*Diff, error) {
	out, err := r.run(ctx, append(append([]string{"diff"}, diffFlags...), args...)...)
	if err != nil {
		return nil, err
	}
	return ParseDiff(out)
}

// output runs git and returns its trimmed stdout.
func (r *Repo) output(ctx context.Context, args ...string) (string, error) {
	out, err := r.run(ctx, args...)
	return strings.TrimSpace(out), err
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}
