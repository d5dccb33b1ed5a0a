package vcs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/unibuild/internal/xexec"
)

// VCS defines the interface for version control operations.
type VCS interface {
	// Clone clones remote with its submodules into dir. An existing dir is
	// left untouched. A non-empty branch is checked out as a local
	// tracking branch.
	Clone(ctx context.Context, remote, branch, dir string) error

	// Describe returns the nearest tag description of the repository in
	// dir, as printed by `git describe --tags`.
	Describe(ctx context.Context, dir string) (string, error)

	// Clean removes ignored files below paths of the work tree in dir.
	Clean(ctx context.Context, dir string, paths ...string) error
}

// gitVCS implements VCS using git.
type gitVCS struct {
	git    string
	runner xexec.Runner
	env    []string
}

// GitOption configures gitVCS.
type GitOption func(*gitVCS)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *gitVCS) {
		g.git = path
	}
}

// WithRunner routes git invocations through r.
func WithRunner(r xexec.Runner) GitOption {
	return func(g *gitVCS) {
		g.runner = r
	}
}

// WithEnv sets the environment of git invocations.
func WithEnv(env []string) GitOption {
	return func(g *gitVCS) {
		g.env = env
	}
}

// NewGitVCS creates a new git VCS instance.
func NewGitVCS(opts ...GitOption) VCS {
	g := &gitVCS{git: "git"}
	for _, opt := range opts {
		opt(g)
	}
	if g.runner == nil {
		g.runner = &xexec.Exec{}
	}
	return g
}

func (g *gitVCS) Clone(ctx context.Context, remote, branch, dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return err
	}
	if err := g.run(ctx, filepath.Dir(dir), "clone", "--recurse-submodules", remote, dir); err != nil {
		return fmt.Errorf("clone %s: %w", remote, err)
	}
	if branch == "" {
		return nil
	}
	if err := g.run(ctx, dir, "checkout", "-b", branch, "origin/"+branch); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

func (g *gitVCS) Describe(ctx context.Context, dir string) (string, error) {
	output, err := g.output(ctx, "", "--git-dir="+filepath.Join(dir, ".git"), "describe", "--tags")
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", dir, err)
	}
	return strings.TrimSpace(output), nil
}

func (g *gitVCS) Clean(ctx context.Context, dir string, paths ...string) error {
	args := []string{"clean", "-dX", "--force"}
	if len(paths) > 0 {
		args = append(append(args, "--"), paths...)
	}
	if err := g.run(ctx, dir, args...); err != nil {
		return fmt.Errorf("clean %s: %w", dir, err)
	}
	return nil
}

func (g *gitVCS) run(ctx context.Context, dir string, args ...string) error {
	cmd := xexec.Command(g.git, args...)
	cmd.Dir = dir
	cmd.Env = g.env
	return g.runner.Run(ctx, cmd)
}

func (g *gitVCS) output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := xexec.Command(g.git, args...)
	cmd.Dir = dir
	cmd.Env = g.env
	return xexec.Output(ctx, g.runner, cmd)
}
