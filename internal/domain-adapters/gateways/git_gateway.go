package gateways

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// GitGateway implements VCSGateway on top of the git command-line client
type GitGateway struct {
	executor   *CommandExecutor
	tempPrefix string
}

// NewGitGateway creates a git gateway. Clones go to fresh directories named
// with tempPrefix under the system temporary directory.
func NewGitGateway(executor *CommandExecutor, tempPrefix string) *GitGateway {
	return &GitGateway{executor: executor, tempPrefix: tempPrefix}
}

// CloneTree clones sourceDir into a new temporary directory. Only committed
// content is carried over.
func (g *GitGateway) CloneTree(ctx context.Context, sourceDir string) (string, error) {
	cloneDir, err := os.MkdirTemp("", g.tempPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to create clone directory: %w", err)
	}

	if _, err := g.executor.Run(ctx, cloneDir, "git", "clone", sourceDir, "."); err != nil {
		return cloneDir, fmt.Errorf("failed to clone %s: %w", sourceDir, err)
	}

	return cloneDir, nil
}

// Head returns the commit checked out in dir
func (g *GitGateway) Head(ctx context.Context, dir string) (string, error) {
	return g.RevParse(ctx, dir, "HEAD")
}

// Tag creates a lightweight tag. git refuses to overwrite an existing tag,
// which fails the release.
func (g *GitGateway) Tag(ctx context.Context, dir, name, revision string) error {
	args := []string{"git", "tag", name}
	if revision != "" {
		args = append(args, revision)
	}

	if _, err := g.executor.Run(ctx, dir, args...); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return nil
}

// RevParse resolves ref to a full commit hash
func (g *GitGateway) RevParse(ctx context.Context, dir, ref string) (string, error) {
	out, err := g.executor.Run(ctx, dir, "git", "rev-parse", ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", ref, err)
	}

	revision := strings.TrimSpace(out)
	if revision == "" {
		return "", fmt.Errorf("git rev-parse %s returned no revision", ref)
	}
	return revision, nil
}
