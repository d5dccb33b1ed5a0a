// Package fsutil holds the file copy helpers shared by the tree walkers.
package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

// CopyFile copies the content and permission bits of src to dst,
// replacing dst. With keepTimes the modification time is copied too.
func CopyFile(src, dst string, keepTimes bool) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	if keepTimes {
		return os.Chtimes(dst, info.ModTime(), info.ModTime())
	}
	return nil
}

// CopySymlink recreates the symbolic link src at dst without following it.
func CopySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Symlink(target, dst)
}

// Copy copies a regular file or a symbolic link.
func Copy(src, dst string, keepTimes bool) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSymlink != 0 {
		return CopySymlink(src, dst)
	}
	return CopyFile(src, dst, keepTimes)
}

// Exists reports whether path names an entry, without following a final
// symbolic link.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
