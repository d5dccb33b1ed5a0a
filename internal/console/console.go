// Package console prints build progress, warnings and verbose diagnostics.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gookit/color"
	"golang.org/x/term"
)

var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colDebug   = color.Gray
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)

// Console writes leveled messages to a single writer. Debug messages are
// dropped unless verbose output was requested.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	colored bool
}

// New returns a Console writing to out. Colors are used only when out is a
// terminal.
func New(out io.Writer, verbose bool) *Console {
	return &Console{out: out, verbose: verbose, colored: isTerminal(out)}
}

// Stdout returns a Console writing to the process standard output.
func Stdout(verbose bool) *Console {
	return New(os.Stdout, verbose)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Verbose reports whether debug output is enabled.
func (c *Console) Verbose() bool { return c.verbose }

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer { return c.out }

// Infof prints an informational line.
func (c *Console) Infof(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.colored {
		msg = colInfo.Sprint(msg)
	}
	c.println(msg)
}

// Actionf prints a top-level step of the build.
func (c *Console) Actionf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if c.colored {
		c.println(colArrow.Sprint("-> ") + colSuccess.Sprint(msg))
		return
	}
	c.println("-> " + msg)
}

// Warnf prints a non-fatal problem.
func (c *Console) Warnf(format string, args ...any) {
	msg := "WARNING: " + fmt.Sprintf(format, args...)
	if c.colored {
		msg = colWarn.Sprint(msg)
	}
	c.println(msg)
}

// Debugf prints diagnostics in verbose mode only.
func (c *Console) Debugf(format string, args ...any) {
	if !c.verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c.colored {
		msg = colDebug.Sprint(msg)
	}
	c.println(msg)
}

func (c *Console) println(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, msg)
}
