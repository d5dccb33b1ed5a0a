package formula

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goplus/unibuild/internal/fetch"
	"github.com/goplus/unibuild/internal/xexec"
)

func sourcePackage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	files := map[string]string{"zlib-1.3/zlib.h": "#define ZLIB", "zlib-1.3/configure": "#!/bin/sh"}
	for _, name := range []string{"zlib-1.3/zlib.h", "zlib-1.3/configure"} {
		body := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(body))
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func serve(t *testing.T, data []byte) (url, checksum string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	sum := sha256.Sum256(data)
	return srv.URL + "/zlib-1.3.tar.gz", hex.EncodeToString(sum[:])
}

func newSourceContext(t *testing.T, runner xexec.Runner) *Context {
	t.Helper()
	root := t.TempDir()
	c := NewContext(context.Background())
	c.Env = Env{}
	c.ExternalSource = false
	c.Source = filepath.Join(root, "source", "zlib")
	c.BuildDir = filepath.Join(root, "build", "zlib")
	c.PatchDir = filepath.Join(root, "patch")
	c.CorePatchDir = filepath.Join(root, "core", "patch")
	c.Runner = runner
	c.Fetcher = &fetch.Fetcher{Runner: runner}
	return c
}

func TestDownloadSource(t *testing.T) {
	var patched []string
	runner := xexec.RunnerFunc(func(ctx context.Context, cmd *xexec.Cmd) error {
		if cmd.Path != fetch.PatchTool {
			t.Errorf("unexpected command %s", cmd)
			return nil
		}
		if len(cmd.Args) == 2 {
			patched = append(patched, strings.TrimPrefix(cmd.Args[1], "--input=")+"@"+cmd.Dir)
		}
		return nil
	})
	c := newSourceContext(t, runner)
	for _, p := range []string{filepath.Join(c.PatchDir, "zlib-cmake.diff"), filepath.Join(c.CorePatchDir, "zlib-cmake.diff"), filepath.Join(c.CorePatchDir, "zlib-arm.diff")} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	url, sum := serve(t, sourcePackage(t))
	origSource, origBuild := c.Source, c.BuildDir

	if err := c.DownloadSource(url, sum, "zlib-cmake", "zlib-arm"); err != nil {
		t.Fatalf("DownloadSource() error = %v", err)
	}
	extracted := filepath.Join(origSource, "zlib-1.3")
	if c.Source != extracted {
		t.Errorf("Source = %q, want %q", c.Source, extracted)
	}
	if c.BuildDir != filepath.Join(origBuild, "zlib-1.3") {
		t.Errorf("BuildDir = %q", c.BuildDir)
	}
	if !c.HasSourceFile("zlib.h") {
		t.Error("zlib.h was not unpacked")
	}
	want := []string{
		filepath.Join(c.PatchDir, "zlib-cmake.diff") + "@" + extracted,
		filepath.Join(c.CorePatchDir, "zlib-arm.diff") + "@" + extracted,
	}
	if strings.Join(patched, "\n") != strings.Join(want, "\n") {
		t.Errorf("patches = %q, want %q", patched, want)
	}
}

func TestDownloadSourceErrors(t *testing.T) {
	url, sum := serve(t, sourcePackage(t))

	t.Run("checksum", func(t *testing.T) {
		c := newSourceContext(t, nil)
		err := c.DownloadSource(url, strings.Repeat("a", 64))
		var cerr *fetch.ChecksumError
		if !errors.As(err, &cerr) {
			t.Fatalf("error = %v, want *fetch.ChecksumError", err)
		}
	})
	t.Run("missing patch", func(t *testing.T) {
		c := newSourceContext(t, nil)
		err := c.DownloadSource(url, sum, "nope")
		if err == nil || !strings.Contains(err.Error(), "nope.diff") {
			t.Errorf("error = %v", err)
		}
	})
	t.Run("external", func(t *testing.T) {
		c := newSourceContext(t, nil)
		c.ExternalSource = true
		src := c.Source
		if err := c.DownloadSource(url, sum); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) || c.Source != src {
			t.Error("external source was touched")
		}
	})
}

type fakeVCS struct {
	cloned   []string
	describe string
	err      error
}

func (f *fakeVCS) Clone(ctx context.Context, remote, branch, dir string) error {
	f.cloned = append(f.cloned, remote, branch, dir)
	return f.err
}

func (f *fakeVCS) Describe(ctx context.Context, dir string) (string, error) {
	return f.describe, f.err
}

func (f *fakeVCS) Clean(ctx context.Context, dir string, paths ...string) error { return f.err }

func TestCheckoutGitAndSourceVersion(t *testing.T) {
	v := &fakeVCS{describe: "1.6.0-12-gabcdef"}
	c := NewContext(context.Background())
	c.Source = "/r/source/sdl"
	c.VCS = v
	if err := c.CheckoutGit("https://github.com/libsdl-org/SDL.git", "SDL2"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(v.cloned, " ") != "https://github.com/libsdl-org/SDL.git SDL2 /r/source/sdl" {
		t.Errorf("Clone called with %q", v.cloned)
	}
	if got := c.SourceVersion(); got != "1.6.0-12-gabcdef" {
		t.Errorf("SourceVersion() = %q", got)
	}
	v.err = errors.New("not a git repository")
	if got := c.SourceVersion(); got != "" {
		t.Errorf("SourceVersion() = %q, want empty", got)
	}
}
