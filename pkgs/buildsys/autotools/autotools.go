package autotools

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/pkgs/buildsys"
)

// ErrXcode is returned when project generation is requested for a
// configure script.
var ErrXcode = errors.New("autotools: Xcode project generation is not supported")

// Target runs configure and make for the current platform.
type Target struct {
	formula.BaseTarget

	// Static disables shared libraries.
	Static bool
}

var _ buildsys.BuildSystem = (*Target)(nil)

// New returns an Autotools target installing into dest.
func New(name string, dest formula.Destination) *Target {
	return &Target{BaseTarget: formula.BaseTarget{TargetName: name, Dest: dest}}
}

// NewDependency returns an Autotools target installing into deps.
func NewDependency(name string) *Target {
	return New(name, formula.DestinationDeps)
}

// NewStaticDependency returns a dependency target producing static
// libraries only.
func NewStaticDependency(name string) *Target {
	t := NewDependency(name)
	t.Static = true
	return t
}

// Configure runs <source>/configure from the build directory.
func (t *Target) Configure(c *formula.Context) error {
	if c.Xcode {
		return ErrXcode
	}
	if err := buildsys.SetupFlags(c); err != nil {
		return err
	}
	if err := os.MkdirAll(c.BuildDir, 0o755); err != nil {
		return err
	}
	if cc := c.CCompiler(); cc != "" {
		c.Env["CC"] = cc
		c.Env["CXX"] = c.CXXCompiler()
	}

	opts := c.Options
	buildsys.SetDefault(opts, "--prefix", c.InstallDir)
	if host := c.Host(); host != "" {
		buildsys.SetDefault(opts, "--host", host)
	}
	if t.Static {
		buildsys.SetDefault(opts, "--enable-shared", "no")
		buildsys.SetDefault(opts, "--enable-static", "yes")
	}
	return c.Run(c.BuildDir, filepath.Join(c.Source, "configure"), opts.Args(formula.MakeRules)...)
}

func (t *Target) Build(c *formula.Context) error {
	return buildsys.Make(c, c.BuildDir)
}

func (t *Target) PostBuild(c *formula.Context) error {
	return t.Install(c)
}

// Install runs make install.
func (t *Target) Install(c *formula.Context) error {
	return buildsys.Make(c, c.BuildDir, "install")
}
