// Package prefix keeps the shared dependency prefix in sync with the
// installed dependency trees. Files are hard-linked when source and prefix
// share a device and copied otherwise; files that no dependency provides
// any more are removed.
package prefix

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/unibuild/internal/fsutil"
	"golang.org/x/sys/unix"
)

// Stats counts what a Sync did.
type Stats struct {
	Linked  int
	Copied  int
	Skipped int
	Removed int
}

// Changed reports whether Sync touched the prefix.
func (s Stats) Changed() bool {
	return s.Linked+s.Copied+s.Removed > 0
}

func (s Stats) String() string {
	return fmt.Sprintf("%d linked, %d copied, %d up to date, %d removed", s.Linked, s.Copied, s.Skipped, s.Removed)
}

type fileID struct {
	dev uint64
	ino uint64
}

type fileStat struct {
	id    fileID
	size  int64
	mtime int64
	link  bool
}

func lstat(path string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return fileStat{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	return fileStat{
		id:    fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)},
		size:  int64(st.Size),
		mtime: st.Mtim.Nano(),
		link:  st.Mode&unix.S_IFMT == unix.S_IFLNK,
	}, nil
}

// Sources lists the per-dependency directories below coreDeps and deps.
// Entries ending in .gitignore are skipped; deps is only scanned when it
// differs from coreDeps.
func Sources(coreDeps, deps string) ([]string, error) {
	srcs, err := listDir(coreDeps)
	if err != nil {
		return nil, err
	}
	if filepath.Clean(coreDeps) != filepath.Clean(deps) {
		more, err := listDir(deps)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, more...)
	}
	return srcs, nil
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".gitignore") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			dirs = append(dirs, path)
		}
	}
	return dirs, nil
}

type syncer struct {
	stats Stats
	seen  map[fileID]bool

	// plan maps every prefix path to the source file that wins it.
	plan  []copyPair
	index map[string]int
}

type copyPair struct {
	src, dst string
}

// Sync mirrors the union of srcs into dst. Later sources win when two of
// them provide the same path; only the winning file is linked, so a
// repeated Sync over unchanged sources links and copies nothing.
func Sync(srcs []string, dst string) (Stats, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return Stats{}, err
	}
	s := &syncer{seen: make(map[fileID]bool), index: make(map[string]int)}
	for _, src := range srcs {
		if err := s.collect(src, dst); err != nil {
			return s.stats, err
		}
	}
	for _, p := range s.plan {
		id, err := s.hardcopy(p.src, p.dst)
		if err != nil {
			return s.stats, err
		}
		s.seen[id] = true
	}
	if err := s.unlinkMissing(dst); err != nil {
		return s.stats, err
	}
	if _, err := removeEmptyDirs(dst, true); err != nil {
		return s.stats, err
	}
	return s.stats, nil
}

// collect records the files below src, creating their directories in dst.
func (s *syncer) collect(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := os.MkdirAll(to, 0o755); err != nil {
				return err
			}
			if err := s.collect(from, to); err != nil {
				return err
			}
			continue
		}
		if i, ok := s.index[to]; ok {
			s.plan[i].src = from
			continue
		}
		s.index[to] = len(s.plan)
		s.plan = append(s.plan, copyPair{src: from, dst: to})
	}
	return nil
}

// hardcopy makes dst an up-to-date copy of src and returns the identity of
// the resulting file.
func (s *syncer) hardcopy(src, dst string) (fileID, error) {
	srcSt, err := lstat(src)
	if err != nil {
		return fileID{}, err
	}

	dstSt, err := lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		parent, err := lstat(filepath.Dir(dst))
		if err != nil {
			return fileID{}, err
		}
		return s.linkOrCopy(src, dst, srcSt, parent.id.dev)
	}
	if err != nil {
		return fileID{}, err
	}

	if sameFile(src, dst, srcSt, dstSt) {
		s.stats.Skipped++
		return dstSt.id, nil
	}
	if err := os.Remove(dst); err != nil {
		return fileID{}, err
	}
	return s.linkOrCopy(src, dst, srcSt, dstSt.id.dev)
}

func sameFile(src, dst string, srcSt, dstSt fileStat) bool {
	if srcSt.id == dstSt.id {
		return true
	}
	if srcSt.link || dstSt.link {
		if srcSt.link != dstSt.link {
			return false
		}
		a, errA := os.Readlink(src)
		b, errB := os.Readlink(dst)
		return errA == nil && errB == nil && a == b
	}
	return srcSt.id.dev != dstSt.id.dev && srcSt.mtime == dstSt.mtime && srcSt.size == dstSt.size
}

func (s *syncer) linkOrCopy(src, dst string, srcSt fileStat, dstDev uint64) (fileID, error) {
	if srcSt.link {
		if err := fsutil.CopySymlink(src, dst); err != nil {
			return fileID{}, err
		}
		s.stats.Copied++
		st, err := lstat(dst)
		return st.id, err
	}
	if srcSt.id.dev == dstDev {
		if err := os.Link(src, dst); err != nil {
			return fileID{}, err
		}
		s.stats.Linked++
		return srcSt.id, nil
	}
	if err := fsutil.CopyFile(src, dst, true); err != nil {
		return fileID{}, err
	}
	s.stats.Copied++
	st, err := lstat(dst)
	return st.id, err
}

func (s *syncer) unlinkMissing(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		st, err := lstat(path)
		if err != nil {
			return err
		}
		if s.seen[st.id] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		s.stats.Removed++
		return nil
	})
}

// removeEmptyDirs removes directories left without entries below path and
// reports whether path itself was removed.
func removeEmptyDirs(path string, keep bool) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ok, err := removeEmptyDirs(filepath.Join(path, e.Name()), false)
		if err != nil {
			return false, err
		}
		if ok {
			removed++
		}
	}
	if keep || removed != len(entries) {
		return false, nil
	}
	return true, os.Remove(path)
}
