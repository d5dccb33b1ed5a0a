// Package machofix rewrites dynamic-linking metadata of Mach-O files so an
// install tree can be relocated: install names and dependencies become
// @rpath-relative and each binary carries a single rpath pointing at the
// sibling lib directory.
package machofix

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/goplus/unibuild/internal/macho"
	"github.com/goplus/unibuild/internal/xexec"
)

// RPath is the run-path search entry every fixed binary ends up with.
const RPath = "@loader_path/../lib"

const (
	cmdIDDylib   = "cmd LC_ID_DYLIB"
	cmdLoadDylib = "cmd LC_LOAD_DYLIB"
	cmdRPath     = "cmd LC_RPATH"
)

var (
	sectionRE = regexp.MustCompile(`Load command \d+\n`)
	pathRE    = regexp.MustCompile(`^\s*(?:name|path) (.+) \(offset \d+\)`)
)

// System locations that must stay absolute.
var systemPrefixes = []string{"/System/", "/usr/lib/", "@rpath/"}

type loadCommand struct {
	kind string
	path string
}

// parseLoadCommands extracts dylib and rpath records from `otool -l`
// output. Sections that are too short or do not match the expected layout
// are skipped.
func parseLoadCommands(out string) []loadCommand {
	sections := sectionRE.Split(out, -1)
	if len(sections) < 2 {
		return nil
	}
	var cmds []loadCommand
	for _, section := range sections[1:] {
		lines := strings.Split(section, "\n")
		if len(lines) < 3 {
			continue
		}
		kind := strings.TrimLeft(lines[0], " \t")
		switch kind {
		case cmdIDDylib, cmdLoadDylib, cmdRPath:
		default:
			continue
		}
		m := pathRE.FindStringSubmatch(lines[2])
		if m == nil {
			continue
		}
		cmds = append(cmds, loadCommand{kind: kind, path: m[1]})
	}
	return cmds
}

// Fixer drives otool and install_name_tool.
type Fixer struct {
	Runner xexec.Runner
	// Env is the environment of the spawned tools; nil inherits.
	Env []string

	OTool           string
	InstallNameTool string
}

func (f *Fixer) otool() string {
	if f.OTool != "" {
		return f.OTool
	}
	return "otool"
}

func (f *Fixer) installNameTool() string {
	if f.InstallNameTool != "" {
		return f.InstallNameTool
	}
	return "install_name_tool"
}

// Fix repairs every Mach-O file below root. Symbolic links are not
// followed.
func (f *Fixer) Fix(ctx context.Context, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		kind, err := macho.Sniff(path)
		if err != nil {
			return err
		}
		if kind != macho.Object {
			return nil
		}
		return f.FixFile(ctx, path)
	})
}

// FixFile repairs a single Mach-O file.
func (f *Fixer) FixFile(ctx context.Context, path string) error {
	out, err := xexec.Output(ctx, f.Runner, f.command(f.otool(), "-l", path))
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}

	cmds := parseLoadCommands(out)
	hasRPath := false
	for _, lc := range cmds {
		if lc.kind == cmdRPath && lc.path == RPath {
			hasRPath = true
		}
	}

	// kept is set once an LC_RPATH equal to RPath is in place
	kept := false
	for _, lc := range cmds {
		var args []string
		switch lc.kind {
		case cmdIDDylib:
			if !strings.HasPrefix(lc.path, "@rpath/") {
				args = []string{"-id", "@rpath/" + filepath.Base(lc.path)}
			}
		case cmdLoadDylib:
			if !hasSystemPrefix(lc.path) {
				args = []string{"-change", lc.path, "@rpath/" + filepath.Base(lc.path)}
			}
		case cmdRPath:
			switch {
			case lc.path == RPath && kept:
				args = []string{"-delete_rpath", lc.path}
			case lc.path == RPath:
				kept = true
			case kept || hasRPath:
				args = []string{"-delete_rpath", lc.path}
			default:
				args = []string{"-rpath", lc.path, RPath}
				kept = true
			}
		}
		if args == nil {
			continue
		}
		if err := f.edit(ctx, path, args); err != nil {
			return err
		}
	}

	if !kept {
		return f.edit(ctx, path, []string{"-add_rpath", RPath})
	}
	return nil
}

func hasSystemPrefix(path string) bool {
	for _, p := range systemPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (f *Fixer) edit(ctx context.Context, path string, args []string) error {
	cmd := f.command(f.installNameTool(), append(args, path)...)
	if err := f.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("fix %s: %w", path, err)
	}
	return nil
}

func (f *Fixer) command(name string, args ...string) *xexec.Cmd {
	cmd := xexec.Command(name, args...)
	cmd.Env = f.Env
	return cmd
}
