package cmake

import (
	"os"
	"strconv"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/pkgs/buildsys"
)

// Target builds a CMake project for the current platform. Recipes embed it
// and adjust c.Options before calling Configure.
type Target struct {
	formula.BaseTarget

	// Static turns shared libraries off.
	Static bool
}

var _ buildsys.BuildSystem = (*Target)(nil)

// New returns a CMake target installing into dest.
func New(name string, dest formula.Destination) *Target {
	return &Target{BaseTarget: formula.BaseTarget{TargetName: name, Dest: dest}}
}

// NewStaticDependency returns a dependency target that builds static
// libraries only.
func NewStaticDependency(name string) *Target {
	t := New(name, formula.DestinationDeps)
	t.Static = true
	return t
}

func (t *Target) Configure(c *formula.Context) error {
	if err := buildsys.SetupFlags(c); err != nil {
		return err
	}
	if err := os.MkdirAll(c.BuildDir, 0o755); err != nil {
		return err
	}

	opts := c.Options
	buildsys.SetDefault(opts, "CMAKE_BUILD_TYPE", "Release")
	buildsys.SetDefault(opts, "CMAKE_INSTALL_PREFIX", c.InstallDir)
	buildsys.SetDefault(opts, "CMAKE_PREFIX_PATH", c.PrefixDir)
	if arch := c.Arch(); arch != "" {
		buildsys.SetDefault(opts, "CMAKE_OSX_ARCHITECTURES", arch)
	}
	if v := c.OSVersion(); !v.IsZero() {
		buildsys.SetDefault(opts, "CMAKE_OSX_DEPLOYMENT_TARGET", v.String())
	}
	if sdk := c.SDKPath(); sdk != "" {
		buildsys.SetDefault(opts, "CMAKE_OSX_SYSROOT", sdk)
	}
	if !c.Xcode && c.CCompiler() != "" {
		buildsys.SetDefault(opts, "CMAKE_C_COMPILER", c.CCompiler())
		buildsys.SetDefault(opts, "CMAKE_CXX_COMPILER", c.CXXCompiler())
	}
	if t.Static {
		buildsys.SetDefault(opts, "BUILD_SHARED_LIBS", "NO")
	}

	args := []string{"-S", c.Source, "-B", c.BuildDir}
	if c.Xcode {
		args = append(args, "-G", "Xcode")
	}
	args = append(args, opts.Args(formula.CMakeRules)...)
	return c.Run(c.BuildDir, "cmake", args...)
}

func (t *Target) Build(c *formula.Context) error {
	if c.Xcode {
		return nil
	}
	jobs := c.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return c.Run(c.BuildDir, "cmake", "--build", c.BuildDir, "--parallel", strconv.Itoa(jobs))
}

func (t *Target) PostBuild(c *formula.Context) error {
	return t.Install(c)
}

// Install runs the install step of the generated build.
func (t *Target) Install(c *formula.Context) error {
	if c.Xcode {
		return nil
	}
	return c.Run(c.BuildDir, "cmake", "--install", c.BuildDir)
}
