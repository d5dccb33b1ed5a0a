// Package universal merges per-architecture install trees into one tree of
// universal binaries.
package universal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/unibuild/internal/fsutil"
	"github.com/goplus/unibuild/internal/macho"
	"github.com/goplus/unibuild/internal/sign"
	"github.com/goplus/unibuild/internal/xexec"
	"lukechampine.com/blake3"
)

// Warner receives non-fatal problems found while merging.
type Warner interface {
	Warnf(format string, args ...any)
}

// Merger combines install trees. The first tree defines the layout;
// entries only present in later trees are backfilled.
type Merger struct {
	Runner xexec.Runner
	Env    []string
	Signer *sign.Signer
	Log    Warner
	// Lipo overrides the lipo executable.
	Lipo string
}

func (m *Merger) lipo() string {
	if m.Lipo != "" {
		return m.Lipo
	}
	return "lipo"
}

// Merge replaces dst with the merge of srcs. Libtool archives (.la) are
// dropped. Merging no trees does nothing.
func (m *Merger) Merge(ctx context.Context, srcs []string, dst string) error {
	if len(srcs) == 0 {
		return nil
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return m.mergeDir(ctx, srcs, dst)
}

func (m *Merger) mergeDir(ctx context.Context, srcs []string, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(srcs[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		subs := join(srcs, name)
		target := filepath.Join(dst, name)

		switch {
		case e.Type()&fs.ModeSymlink != 0:
			err = fsutil.CopySymlink(subs[0], target)
		case e.IsDir():
			err = m.mergeDir(ctx, subs, target)
		case strings.HasSuffix(name, ".la"):
			continue
		default:
			err = m.mergeFile(ctx, subs, target)
		}
		if err != nil {
			return err
		}
	}
	return m.backfill(srcs, dst)
}

// backfill copies entries missing from the first tree out of the others.
// Every rotation of srcs puts a different tree first.
func (m *Merger) backfill(srcs []string, dst string) error {
	for i := 1; i < len(srcs); i++ {
		rotated := append(append([]string(nil), srcs[i:]...), srcs[:i]...)
		if !isDir(rotated[0]) {
			continue
		}
		if err := m.copyMissing(rotated, dst); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merger) copyMissing(srcs []string, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(srcs[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		subs := join(srcs, name)
		target := filepath.Join(dst, name)

		if e.IsDir() {
			if err := m.copyMissing(subs, target); err != nil {
				return err
			}
			continue
		}
		if strings.HasSuffix(name, ".la") || fsutil.Exists(target) || !missingElsewhere(subs) {
			continue
		}
		if err := fsutil.Copy(subs[0], target, false); err != nil {
			return err
		}
	}
	return nil
}

func missingElsewhere(subs []string) bool {
	for _, s := range subs[1:] {
		if !fsutil.Exists(s) {
			return true
		}
	}
	return false
}

func (m *Merger) mergeFile(ctx context.Context, subs []string, dst string) error {
	kind, err := macho.Sniff(subs[0])
	if err != nil {
		return err
	}
	if kind == macho.None {
		return m.mergeData(subs, dst)
	}

	args := existing(subs)
	args = append(args, "-create", "-output", dst)
	cmd := xexec.Command(m.lipo(), args...)
	cmd.Env = m.Env
	if err := m.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("merge %s: %w", dst, err)
	}

	if kind == macho.Object && !inAppBundle(dst) && m.Signer != nil {
		return m.Signer.Sign(ctx, dst)
	}
	return nil
}

func (m *Merger) mergeData(subs []string, dst string) error {
	same, err := sameContent(existing(subs))
	if err != nil {
		return err
	}
	if !same && m.Log != nil {
		m.Log.Warnf("Source files for %s don't match", dst)
	}
	return fsutil.CopyFile(subs[0], dst, false)
}

func sameContent(paths []string) (bool, error) {
	var first []byte
	for i, p := range paths {
		sum, err := digest(p)
		if err != nil {
			return false, err
		}
		if i == 0 {
			first = sum
		} else if !bytes.Equal(first, sum) {
			return false, nil
		}
	}
	return true, nil
}

func digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func join(dirs []string, name string) []string {
	subs := make([]string, len(dirs))
	for i, d := range dirs {
		subs[i] = filepath.Join(d, name)
	}
	return subs
}

func existing(paths []string) []string {
	var out []string
	for _, p := range paths {
		if fsutil.Exists(p) {
			out = append(out, p)
		}
	}
	return out
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// inAppBundle reports whether path lies inside an application bundle's
// Contents directory, which is signed as a whole.
func inAppBundle(path string) bool {
	return strings.Contains(filepath.ToSlash(path), ".app/Contents/")
}
