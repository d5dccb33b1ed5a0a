// Copyright 2024 The unibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch downloads, verifies, unpacks and patches source packages.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goplus/unibuild/internal/xexec"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Logger receives progress messages.
type Logger interface {
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// Fetcher acquires source packages.
type Fetcher struct {
	Runner xexec.Runner
	Env    []string
	Log    Logger
	Client *http.Client
	// Progress receives a download progress bar. Nil shows a bar on a
	// terminal stderr and nothing otherwise.
	Progress io.Writer
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) infof(format string, args ...any) {
	if f.Log != nil {
		f.Log.Infof(format, args...)
	}
}

func (f *Fetcher) debugf(format string, args ...any) {
	if f.Log != nil {
		f.Log.Debugf(format, args...)
	}
}

// FileName returns the package file name of url.
func FileName(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	return path.Base(url)
}

// Download stores url at dst unless dst already exists. Concurrent
// downloads of the same file are serialized with a lock file.
func (f *Fetcher) Download(ctx context.Context, url, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	lockPath := dst + ".lock"
	lock, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("create lock file: %w", err)
	}
	defer lock.Close()
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock %s: %w", dst, err)
	}
	defer unix.Flock(int(lock.Fd()), unix.LOCK_UN)
	defer os.Remove(lockPath)

	// another process may have finished while we waited
	if _, err := os.Stat(dst); err == nil {
		f.debugf("%s appeared while waiting for the lock", dst)
		return nil
	}

	f.infof("Downloading %s", filepath.Base(dst))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	part := dst + ".part"
	out, err := os.Create(part)
	if err != nil {
		return err
	}
	var w io.Writer = out
	if bar := f.progressBar(resp.ContentLength, filepath.Base(dst)); bar != nil {
		w = io.MultiWriter(out, bar)
		defer bar.Close()
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		os.Remove(part)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, dst)
}

func (f *Fetcher) progressBar(size int64, name string) *progressbar.ProgressBar {
	w := f.Progress
	if w == nil {
		if !term.IsTerminal(int(os.Stderr.Fd())) {
			return nil
		}
		w = os.Stderr
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(name),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100 * time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// ChecksumError reports a package whose SHA-256 does not match.
type ChecksumError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum of %s does not match, expected: %s, actual: %s", e.Path, e.Expected, e.Actual)
}

// Verify checks the SHA-256 of the file at path and deletes the file when
// it does not match want.
func Verify(path, want string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	h := sha256.New()
	_, err = io.Copy(h, file)
	file.Close()
	if err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if strings.EqualFold(got, want) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return &ChecksumError{Path: path, Expected: want, Actual: got}
}
