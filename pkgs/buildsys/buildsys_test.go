package buildsys

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/internal/xexec"
)

func newContext(t *testing.T, cmds *[]string) *formula.Context {
	t.Helper()
	root := t.TempDir()
	c := formula.NewContext(context.Background())
	c.Env = formula.Env{"PATH": "/usr/bin"}
	c.PrefixDir = filepath.Join(root, "prefix")
	c.Source = filepath.Join(root, "source", "yasm-1.3.0")
	c.BuildDir = filepath.Join(root, "build", "yasm", "x86_64")
	c.InstallDir = filepath.Join(root, "deps", "yasm")
	c.Platform = formula.NewPlatform(formula.ArchX86_64, "x86_64-apple-darwin",
		formula.MustParseVersion("10.15"), "", c.PrefixDir)
	c.Jobs = 6
	c.Runner = xexec.RunnerFunc(func(ctx context.Context, cmd *xexec.Cmd) error {
		if cmd.Path == "clang" {
			_, err := io.WriteString(cmd.Stdout, "Apple clang version 15.0.0 (clang-1500.0.40.1)\n")
			return err
		}
		*cmds = append(*cmds, cmd.String())
		return nil
	})
	return c
}

func TestSetupFlags(t *testing.T) {
	var cmds []string
	c := newContext(t, &cmds)
	if err := SetupFlags(c); err != nil {
		t.Fatal(err)
	}
	wantC := c.CompilerFlags() + " -mmacosx-version-min=10.15"
	for _, name := range []string{"CFLAGS", "CXXFLAGS", "OBJCFLAGS", "OBJCXXFLAGS"} {
		if got := c.Env[name]; got != wantC {
			t.Errorf("%s = %q, want %q", name, got, wantC)
		}
	}
	ld := c.Env["LDFLAGS"]
	if !strings.HasPrefix(ld, "-L"+c.LibDir()) || !strings.Contains(ld, "-Wl,-ld_classic") {
		t.Errorf("LDFLAGS = %q", ld)
	}
	if got := c.Env["PKG_CONFIG_PATH"]; got != filepath.Join(c.LibDir(), "pkgconfig") {
		t.Errorf("PKG_CONFIG_PATH = %q", got)
	}
}

func TestSetDefault(t *testing.T) {
	opts := formula.NewOptions()
	opts.Set("--prefix", "/custom")
	SetDefault(opts, "--prefix", "/default")
	SetDefault(opts, "--host", "x86_64-apple-darwin")
	got := strings.Join(opts.Args(formula.MakeRules), " ")
	if got != "--prefix=/custom --host=x86_64-apple-darwin" {
		t.Errorf("args = %q", got)
	}
}

func TestMake(t *testing.T) {
	var cmds []string
	c := newContext(t, &cmds)
	if err := Make(c, c.BuildDir, "install"); err != nil {
		t.Fatal(err)
	}
	c.Jobs = 0
	if err := Make(c, c.BuildDir); err != nil {
		t.Fatal(err)
	}
	want := []string{"make -j6 install", "make -j1"}
	if strings.Join(cmds, "|") != strings.Join(want, "|") {
		t.Errorf("commands = %q, want %q", cmds, want)
	}
}

func TestCopyToBin(t *testing.T) {
	var cmds []string
	c := newContext(t, &cmds)
	if err := os.MkdirAll(c.BuildDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(c.BuildDir, "make"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := CopyToBin(c, "make", "gmake"); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(filepath.Join(c.InstallDir, "bin", "gmake"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm()&0o100 == 0 {
		t.Errorf("gmake mode = %v, want executable", fi.Mode())
	}
	if err := CopyToBin(c, "missing", ""); err == nil {
		t.Error("CopyToBin() of a missing file succeeded")
	}
}
