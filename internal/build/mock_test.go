package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/internal/xexec"
)

// machoHeader is a little-endian 64-bit Mach-O magic.
var machoHeader = []byte{0xcf, 0xfa, 0xed, 0xfe, 7, 0, 0, 1}

// fakeTarget installs a small tree per architecture and records the calls
// it receives.
type fakeTarget struct {
	formula.BaseTarget
	t      *testing.T
	marker string
	// failArch makes Build fail for that architecture.
	failArch string
	events   []string
}

func (f *fakeTarget) log(format string, args ...any) {
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *fakeTarget) Detect(c *formula.Context) bool {
	return f.marker != "" && c.HasSourceFile(f.marker)
}

func (f *fakeTarget) Initialize(c *formula.Context) error {
	f.log("initialize")
	return nil
}

func (f *fakeTarget) PrepareSource(c *formula.Context) error {
	f.log("prepare %s external=%v", filepath.Base(c.Source), c.ExternalSource)
	return nil
}

func (f *fakeTarget) Configure(c *formula.Context) error {
	if c.Options.Len() != 0 {
		f.t.Errorf("%s: options leaked from the previous cycle", c.Arch())
	}
	if _, ok := c.Env["FAKE_CYCLE"]; ok {
		f.t.Errorf("%s: environment leaked from the previous cycle", c.Arch())
	}
	c.Options.Set("--arch", c.Arch())
	c.Env["FAKE_CYCLE"] = c.Arch()
	f.log("configure %s", c.Arch())
	return nil
}

func (f *fakeTarget) Build(c *formula.Context) error {
	f.log("build %s", c.Arch())
	if c.Arch() == f.failArch {
		return errors.New("compiler crashed")
	}
	return nil
}

func (f *fakeTarget) PostBuild(c *formula.Context) error {
	f.log("post-build %s", c.Arch())
	if c.Xcode {
		return nil
	}
	files := []struct {
		name string
		data []byte
		mode os.FileMode
	}{
		{"lib/libfake.dylib", machoHeader, 0o644},
		{"lib/libfake.la", []byte("libtool"), 0o644},
		{"bin/fake", machoHeader, 0o755},
		{"include/fake.h", []byte("#define FAKE 1\n"), 0o644},
		{"share/" + c.Arch() + ".txt", []byte(c.Arch()), 0o644},
	}
	for _, file := range files {
		path := filepath.Join(c.InstallDir, file.name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, file.data, file.mode); err != nil {
			return err
		}
	}
	return nil
}

func newFakeTarget(t *testing.T, name string, dest formula.Destination) *fakeTarget {
	return &fakeTarget{
		BaseTarget: formula.BaseTarget{TargetName: name, Dest: dest, OutputFiles: []string{"bin/fake"}},
		t:          t,
	}
}

// toolchain stands in for otool, install_name_tool, lipo and codesign.
// Merge and signing commands that see a cycle's environment are kept in
// cycleEnv.
type toolchain struct {
	cmds     []string
	cycleEnv []string
}

func (tc *toolchain) Run(ctx context.Context, cmd *xexec.Cmd) error {
	line := cmd.String()
	if cmd.Dir != "" {
		line += " @" + cmd.Dir
	}
	tc.cmds = append(tc.cmds, line)
	if cmd.Path == "lipo" || cmd.Path == "codesign" {
		for _, kv := range cmd.Env {
			if strings.HasPrefix(kv, "FAKE_CYCLE=") {
				tc.cycleEnv = append(tc.cycleEnv, line)
			}
		}
	}
	switch cmd.Path {
	case "otool":
		// no load commands
	case "lipo":
		dst := cmd.Args[len(cmd.Args)-1]
		var data []byte
		for _, in := range cmd.Args[:len(cmd.Args)-3] {
			b, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			data = append(data, b...)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o755)
	case "install_name_tool", "codesign":
	default:
		return fmt.Errorf("unexpected command %s", line)
	}
	return nil
}

func (tc *toolchain) matching(prefix string) []string {
	var out []string
	for _, c := range tc.cmds {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

type fakeVCS struct {
	version string
}

func (f *fakeVCS) Clone(ctx context.Context, remote, branch, dir string) error { return nil }

func (f *fakeVCS) Describe(ctx context.Context, dir string) (string, error) {
	if f.version == "" {
		return "", fmt.Errorf("not a git repository")
	}
	return f.version, nil
}

func (f *fakeVCS) Clean(ctx context.Context, dir string, paths ...string) error { return nil }

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
