package targets

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/internal/xexec"
)

type recorder struct {
	cmds []*xexec.Cmd
}

func (r *recorder) Run(ctx context.Context, cmd *xexec.Cmd) error {
	if cmd.Path == "clang" {
		_, err := io.WriteString(cmd.Stdout, "Apple clang version 16.0.0 (clang-1600.0.26.6)\n")
		return err
	}
	r.cmds = append(r.cmds, cmd)
	if filepath.Base(cmd.Path) == "pkg-config" && cmd.Stdout != nil {
		_, err := io.WriteString(cmd.Stdout, "-I/deps/include -L/deps/lib -lz\n")
		return err
	}
	return nil
}

func (r *recorder) lines() []string {
	var out []string
	for _, c := range r.cmds {
		out = append(out, c.String())
	}
	return out
}

func (r *recorder) find(t *testing.T, prefix string) *xexec.Cmd {
	t.Helper()
	for _, c := range r.cmds {
		if strings.HasPrefix(c.String(), prefix) {
			return c
		}
	}
	t.Fatalf("no command starting with %q in %q", prefix, r.lines())
	return nil
}

type fakeVCS struct {
	cleaned [][]string
}

func (f *fakeVCS) Clone(ctx context.Context, remote, branch, dir string) error { return nil }

func (f *fakeVCS) Describe(ctx context.Context, dir string) (string, error) { return "", nil }

func (f *fakeVCS) Clean(ctx context.Context, dir string, paths ...string) error {
	f.cleaned = append(f.cleaned, append([]string{dir}, paths...))
	return nil
}

func newContext(t *testing.T, r *recorder) *formula.Context {
	t.Helper()
	root := t.TempDir()
	c := formula.NewContext(context.Background())
	c.Env = formula.Env{"PATH": "/usr/bin:/bin"}
	c.RootDir = root
	c.DepsDir = filepath.Join(root, "deps")
	c.PrefixDir = filepath.Join(root, "prefix")
	c.Source = filepath.Join(root, "source")
	c.BuildDir = filepath.Join(root, "build", "x86_64")
	c.NativeBuildDir = c.BuildDir
	c.InstallDir = filepath.Join(root, "install")
	c.Platform = formula.NewPlatform(formula.ArchX86_64, "x86_64-apple-darwin",
		formula.MustParseVersion("10.15"), "", c.PrefixDir)
	c.Jobs = 3
	c.Runner = r
	return c
}
