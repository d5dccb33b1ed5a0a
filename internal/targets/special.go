package targets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/unibuild/formula"
)

var errXcode = errors.New("target cannot generate an Xcode project")

// BuildPrefix only resynchronizes the shared prefix, which every build
// does before configuring.
type BuildPrefix struct {
	formula.BaseTarget
}

func NewBuildPrefix() *BuildPrefix {
	return &BuildPrefix{formula.BaseTarget{TargetName: "build-prefix", SinglePlatform: true}}
}

// Clean removes files ignored by git below the root.
type Clean struct {
	formula.BaseTarget
	deps bool
}

// NewCleanAll cleans the whole root.
func NewCleanAll() *Clean {
	return &Clean{BaseTarget: formula.BaseTarget{TargetName: "clean-all", SinglePlatform: true}}
}

// NewCleanDeps cleans the dependency directory only.
func NewCleanDeps() *Clean {
	return &Clean{BaseTarget: formula.BaseTarget{TargetName: "clean-deps", SinglePlatform: true}, deps: true}
}

func (t *Clean) Build(c *formula.Context) error {
	if c.Xcode {
		return errXcode
	}
	var paths []string
	if t.deps {
		paths = append(paths, c.DepsDir)
	}
	return c.CleanIgnored(c.RootDir, paths...)
}

// testHeader is force-included into every dependency test.
const testHeader = "unibuild.h"

// TestDeps compiles each <root>/test/NAME.cpp as a universal executable
// against the pkg-config package NAME from the prefix and runs it.
type TestDeps struct {
	formula.BaseTarget
}

func NewTestDeps() *TestDeps {
	return &TestDeps{formula.BaseTarget{TargetName: "test-deps", Dest: formula.DestinationOutput, SinglePlatform: true}}
}

func (t *TestDeps) Build(c *formula.Context) error {
	if c.Xcode {
		return errXcode
	}
	dir := filepath.Join(c.RootDir, "test")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".cpp")
		if !ok || e.IsDir() {
			continue
		}
		pkg, err := c.RunPkgConfig("--cflags", "--libs", name)
		if err != nil {
			return err
		}
		ldflags, err := c.LinkerFlags()
		if err != nil {
			return err
		}
		if c.Console != nil {
			c.Console.Infof("Testing %s", name)
		}

		exe := filepath.Join(c.BuildDir, name)
		args := []string{
			"-arch", formula.ArchX86_64,
			"-arch", formula.ArchARM64,
			"-std=c++17",
			"-include", filepath.Join(dir, testHeader),
			"-g",
			"-o", exe,
			filepath.Join(dir, e.Name()),
		}
		args = append(args, strings.Fields(pkg)...)
		args = append(args, strings.Fields(ldflags)...)
		if err := c.Run(c.BuildDir, "clang++", args...); err != nil {
			return err
		}
		if err := c.Run(c.BuildDir, exe); err != nil {
			return err
		}
	}
	return nil
}
