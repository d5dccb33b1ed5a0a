package formula

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goplus/unibuild/internal/fetch"
	"github.com/goplus/unibuild/internal/vcs"
	"github.com/goplus/unibuild/internal/xexec"
)

func (c *Context) fetcher() *fetch.Fetcher {
	if c.Fetcher != nil {
		return c.Fetcher
	}
	f := &fetch.Fetcher{Runner: c.Runner, Env: c.Env.Environ()}
	if f.Runner == nil {
		f.Runner = &xexec.Exec{}
	}
	if c.Console != nil {
		f.Log = c.Console
	}
	return f
}

func (c *Context) sourceVCS() vcs.VCS {
	if c.VCS != nil {
		return c.VCS
	}
	return vcs.NewGitVCS(vcs.WithRunner(c.Runner), vcs.WithEnv(c.Env.Environ()))
}

// DownloadSource fetches the package at url into the source directory,
// verifies its SHA-256 checksum, unpacks it and applies patches, each
// named without its ".diff" extension. Source and BuildDir are moved into
// the unpacked tree afterwards. Nothing happens for an external source.
func (c *Context) DownloadSource(url, checksum string, patches ...string) error {
	if c.ExternalSource {
		return nil
	}
	if err := os.MkdirAll(c.Source, 0o755); err != nil {
		return err
	}

	f := c.fetcher()
	ctx := c.Context()
	pkg := filepath.Join(c.Source, fetch.FileName(url))
	if err := f.Download(ctx, url, pkg); err != nil {
		return err
	}
	if err := fetch.Verify(pkg, checksum); err != nil {
		return err
	}
	root, extractPath, err := f.Unpack(ctx, pkg, c.Source)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", filepath.Base(pkg), err)
	}
	for _, name := range patches {
		patch, err := c.findPatch(name)
		if err != nil {
			return err
		}
		if err := f.ApplyPatch(ctx, extractPath, patch); err != nil {
			return err
		}
	}

	c.Source = extractPath
	c.BuildDir = filepath.Join(c.BuildDir, root)
	return nil
}

// findPatch looks the patch up in the project patches, then in the core
// patches.
func (c *Context) findPatch(name string) (string, error) {
	file := name + ".diff"
	for _, dir := range []string{c.PatchDir, c.CorePatchDir} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("patch %s not found", file)
}

// CheckoutGit clones url into the source directory, unless it is already
// there, and switches to branch when one is given.
func (c *Context) CheckoutGit(url, branch string) error {
	return c.sourceVCS().Clone(c.Context(), url, branch, c.Source)
}

// SourceVersion describes the source tree with git. It returns "" when the
// tree is not a git checkout.
func (c *Context) SourceVersion() string {
	version, err := c.sourceVCS().Describe(c.Context(), c.Source)
	if err != nil {
		return ""
	}
	return version
}

// CleanIgnored removes the files git ignores below paths of the work tree
// in dir, or below all of it when no path is given.
func (c *Context) CleanIgnored(dir string, paths ...string) error {
	return c.sourceVCS().Clean(c.Context(), dir, paths...)
}
