// Copyright 2024 The unibuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xexec runs the external tools a build drives (compilers, lipo,
// otool, install_name_tool, codesign, git, patch).
package xexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Cmd describes one external tool invocation.
type Cmd struct {
	Path string
	Args []string
	Dir  string
	// Env is the complete environment of the child. Nil inherits the
	// current process environment.
	Env []string

	Stdout io.Writer
	Stderr io.Writer
}

// Command returns a Cmd for name and args.
func Command(name string, args ...string) *Cmd {
	return &Cmd{Path: name, Args: args}
}

// String returns the command line as it would be typed in a shell.
func (c *Cmd) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'$`\\*?;&|<>()") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// Runner executes commands synchronously.
type Runner interface {
	Run(ctx context.Context, c *Cmd) error
}

// RunnerFunc adapts an ordinary function to Runner.
type RunnerFunc func(ctx context.Context, c *Cmd) error

func (f RunnerFunc) Run(ctx context.Context, c *Cmd) error {
	return f(ctx, c)
}

// Error reports a failed external command.
type Error struct {
	Cmd    string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Cmd, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode returns the exit status of the failed command, or -1 when the
// command did not run to completion.
func (e *Error) ExitCode() int {
	return ExitCode(e.Err)
}

// ExitCode extracts the exit status carried by err: 0 for nil, -1 when
// err does not come from a finished process.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

// Logger receives the command line of each command before it starts.
type Logger interface {
	Debugf(format string, args ...any)
}

// Exec runs commands as child processes of the current process.
type Exec struct {
	Log Logger
}

func (x *Exec) Run(ctx context.Context, c *Cmd) error {
	if x.Log != nil {
		if c.Dir != "" {
			x.Log.Debugf("+ (cd %s && %s)", c.Dir, c)
		} else {
			x.Log.Debugf("+ %s", c)
		}
	}
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	var stderr bytes.Buffer
	if c.Stderr != nil {
		cmd.Stderr = c.Stderr
	} else if c.Stdout != nil {
		// captured output: keep diagnostics for the error message
		cmd.Stderr = &stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return &Error{Cmd: c.String(), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

// Output runs c through r and returns its standard output.
func Output(ctx context.Context, r Runner, c *Cmd) (string, error) {
	var stdout bytes.Buffer
	c.Stdout = &stdout
	if err := r.Run(ctx, c); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

// MergeEnv overlays override on base and returns the result sorted by key.
func MergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base)+len(override))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+envMap[k])
	}
	return env
}
