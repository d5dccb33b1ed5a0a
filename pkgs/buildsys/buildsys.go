// Package buildsys holds what the CMake and Autotools base targets share.
package buildsys

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/internal/fsutil"
)

// BuildSystem is a target driven by an external build tool.
type BuildSystem interface {
	formula.Target

	// Install copies the build products into the install directory.
	Install(c *formula.Context) error
}

// SetupFlags points compilers, the linker and pkg-config at the shared
// prefix of c.
func SetupFlags(c *formula.Context) error {
	cflags := c.CompilerFlags()
	for _, name := range []string{"CFLAGS", "CXXFLAGS", "OBJCFLAGS", "OBJCXXFLAGS"} {
		c.UpdateFlagsEnv(name, cflags)
	}
	ldflags, err := c.LinkerFlags()
	if err != nil {
		return err
	}
	c.UpdateFlagsEnv("LDFLAGS", ldflags)
	c.Env.Prepend("PKG_CONFIG_PATH", filepath.Join(c.LibDir(), "pkgconfig"))
	return nil
}

// SetDefault sets name unless a recipe already did.
func SetDefault(opts *formula.Options, name, value string) {
	if !opts.Has(name) {
		opts.Set(name, value)
	}
}

// Make runs make with the job count of c in dir.
func Make(c *formula.Context, dir string, args ...string) error {
	jobs := c.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return c.Run(dir, "make", append([]string{"-j" + strconv.Itoa(jobs)}, args...)...)
}

// CopyToBin installs the executable name from the build directory as
// bin/<newName>. An empty newName keeps the name.
func CopyToBin(c *formula.Context, name, newName string) error {
	if newName == "" {
		newName = name
	}
	dir := filepath.Join(c.InstallDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return fsutil.CopyFile(filepath.Join(c.BuildDir, name), filepath.Join(dir, newName), true)
}
