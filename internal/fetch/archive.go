// Copyright 2024 The unibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/unibuild/internal/xexec"
	"github.com/h2non/filetype"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// errUnsupported marks archives the native reader cannot decode; they are
// handed to the system tar.
var errUnsupported = errors.New("unsupported archive format")

// openTar opens archive as a tar stream, undoing its compression.
func openTar(archive string) (*tar.Reader, func() error, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, nil, err
	}
	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}

	kind, _ := filetype.Match(head[:n])
	ext := kind.Extension
	if kind == filetype.Unknown {
		switch {
		case strings.HasSuffix(archive, ".zst"), strings.HasSuffix(archive, ".tzst"):
			ext = "zst"
		case strings.HasSuffix(archive, ".tar"):
			ext = "tar"
		}
	}

	var r io.Reader
	closeFn := f.Close
	switch ext {
	case "gz":
		gz, err := pgzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("gzip %s: %w", archive, err)
		}
		r = gz
		closeFn = func() error { gz.Close(); return f.Close() }
	case "xz":
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("xz %s: %w", archive, err)
		}
		r = xr
	case "zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("zstd %s: %w", archive, err)
		}
		r = zr
		closeFn = func() error { zr.Close(); return f.Close() }
	case "bz2":
		r = bzip2.NewReader(f)
	case "tar":
		r = f
	default:
		f.Close()
		return nil, nil, errUnsupported
	}
	return tar.NewReader(r), closeFn, nil
}

func skipEntry(hdr *tar.Header) bool {
	return hdr.Typeflag == tar.TypeXGlobalHeader || hdr.Typeflag == tar.TypeXHeader
}

// List returns the entry names of archive.
func (f *Fetcher) List(ctx context.Context, archive string) ([]string, error) {
	tr, closeFn, err := openTar(archive)
	if errors.Is(err, errUnsupported) {
		return f.listWithTar(ctx, archive)
	}
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", archive, err)
		}
		if !skipEntry(hdr) {
			names = append(names, hdr.Name)
		}
	}
	return names, nil
}

func (f *Fetcher) listWithTar(ctx context.Context, archive string) ([]string, error) {
	cmd := xexec.Command("tar", "-tf", archive)
	cmd.Env = f.Env
	out, err := xexec.Output(ctx, f.Runner, cmd)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Root determines where an archive's content ends up. When every entry
// lives below one top-level directory that directory is the root;
// otherwise a new directory named after the archive is created and
// newDir is set.
func Root(names []string, archive string) (root string, newDir bool) {
	for _, name := range names {
		name = strings.TrimPrefix(name, "./")
		first, _, found := strings.Cut(name, "/")
		if !found || first == "" {
			newDir = true
			break
		}
		if root == "" {
			root = first
		} else if root != first {
			newDir = true
			break
		}
	}
	if newDir || root == "" {
		base := filepath.Base(archive)
		return strings.TrimSuffix(base, filepath.Ext(base)), true
	}
	return root, false
}

// Unpack extracts archive below dir and returns the top-level directory
// name and the extracted tree. Extraction is skipped when the tree is
// already present.
func (f *Fetcher) Unpack(ctx context.Context, archive, dir string) (string, string, error) {
	names, err := f.List(ctx, archive)
	if err != nil {
		return "", "", err
	}
	if len(names) == 0 {
		return "", "", fmt.Errorf("%s is empty", archive)
	}
	root, newDir := Root(names, archive)
	extractPath := filepath.Join(dir, root)
	if _, err := os.Stat(extractPath); err == nil {
		return root, extractPath, nil
	}

	work := dir
	if newDir {
		work = extractPath
	}
	if err := os.MkdirAll(work, 0o755); err != nil {
		return "", "", err
	}
	if err := f.extract(ctx, archive, work); err != nil {
		os.RemoveAll(extractPath)
		return "", "", err
	}
	return root, extractPath, nil
}

func (f *Fetcher) extract(ctx context.Context, archive, dest string) error {
	tr, closeFn, err := openTar(archive)
	if errors.Is(err, errUnsupported) {
		f.debugf("extracting %s with system tar", archive)
		cmd := xexec.Command("tar", "-xf", archive)
		cmd.Dir = dest
		cmd.Env = f.Env
		return f.Runner.Run(ctx, cmd)
	}
	if err != nil {
		return err
	}
	defer closeFn()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", archive, err)
		}
		if skipEntry(hdr) {
			continue
		}
		if err := writeEntry(tr, hdr, dest); err != nil {
			return err
		}
	}
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, dest string) error {
	target := filepath.Join(dest, hdr.Name)
	if target != dest && !strings.HasPrefix(target, dest+string(filepath.Separator)) {
		return fmt.Errorf("archive entry %q escapes the destination", hdr.Name)
	}
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o700)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		return os.Chtimes(target, hdr.ModTime, hdr.ModTime)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeLink:
		src := filepath.Join(dest, hdr.Linkname)
		if !strings.HasPrefix(src, dest+string(filepath.Separator)) {
			return fmt.Errorf("archive link %q escapes the destination", hdr.Linkname)
		}
		os.Remove(target)
		return os.Link(src, target)
	}
	return nil
}
