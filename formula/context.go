package formula

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/goplus/unibuild/internal/console"
	"github.com/goplus/unibuild/internal/fetch"
	"github.com/goplus/unibuild/internal/vcs"
	"github.com/goplus/unibuild/internal/xexec"
	"github.com/goplus/unibuild/pkgs/gnu"
)

// Context is the mutable state of one build invocation. Recipes read
// paths, the current platform and the environment from it, and add
// options and environment variables for the tools they run.
type Context struct {
	RootDir      string
	CoreDir      string
	CoreDepsDir  string
	DepsDir      string
	PrefixDir    string
	PatchDir     string
	CorePatchDir string
	SourcesDir   string

	// Source is the source tree of the target being built.
	Source         string
	ExternalSource bool

	BuildDir       string
	NativeBuildDir string
	InstallDir     string
	OutputDir      string
	TempDir        string

	Env       Env
	Options   *Options
	Platform  *Platform
	Platforms []*Platform
	Jobs      int

	// Xcode requests project generation only; nothing is built or installed.
	Xcode   bool
	Verbose bool

	Runner  xexec.Runner
	Console *console.Console
	// Fetcher and VCS acquire sources; nil selects defaults built on Runner.
	Fetcher *fetch.Fetcher
	VCS     vcs.VCS

	ctx           context.Context
	compilerFlags string
	linkerFlags   string
}

// NewContext returns a Context bound to ctx with an empty option set and
// a copy of the process environment.
func NewContext(ctx context.Context) *Context {
	return &Context{
		ExternalSource: true,
		Env:            EnvFromOS(),
		Options:        NewOptions(),
		Jobs:           1,
		ctx:            ctx,
	}
}

// Context returns the context external commands are bound to.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Arch returns the current architecture, or "" outside a platform cycle.
func (c *Context) Arch() string {
	if c.Platform == nil {
		return ""
	}
	return c.Platform.Arch
}

// Host returns the current target triple.
func (c *Context) Host() string {
	if c.Platform == nil {
		return ""
	}
	return c.Platform.Host
}

// OSVersion returns the minimum OS version of the current platform.
func (c *Context) OSVersion() Version {
	if c.Platform == nil {
		return Version{}
	}
	return c.Platform.OSVersion
}

// SDKPath returns the SDK of the current platform, or "".
func (c *Context) SDKPath() string {
	if c.Platform == nil {
		return ""
	}
	return c.Platform.SDKPath
}

var sdkVersionRE = regexp.MustCompile(`(?i)/MacOSX(\d+.\d+)\.sdk`)

// SDKVersion extracts the version from the SDK directory name.
func (c *Context) SDKVersion() Version {
	m := sdkVersionRE.FindStringSubmatch(c.SDKPath())
	if m == nil {
		return Version{}
	}
	v, err := ParseVersion(m[1])
	if err != nil {
		return Version{}
	}
	return v
}

// CCompiler returns the C compiler of the current platform.
func (c *Context) CCompiler() string {
	if c.Platform == nil {
		return ""
	}
	return c.Platform.CC
}

// CXXCompiler returns the C++ compiler of the current platform.
func (c *Context) CXXCompiler() string {
	if c.Platform == nil {
		return ""
	}
	return c.Platform.CXX
}

func (c *Context) BinDir() string     { return filepath.Join(c.PrefixDir, "bin") }
func (c *Context) IncludeDir() string { return filepath.Join(c.PrefixDir, "include") }
func (c *Context) LibDir() string     { return filepath.Join(c.PrefixDir, "lib") }

// CompilerFlags returns the include and file-prefix-map flags for the
// shared prefix.
func (c *Context) CompilerFlags() string {
	if c.compilerFlags == "" {
		c.compilerFlags = fmt.Sprintf("-I%s -ffile-prefix-map=%s/=", c.IncludeDir(), c.Source)
	}
	return c.compilerFlags
}

var clangVersionRE = regexp.MustCompile(`\(clang-([\d.]+)\)`)

// LinkerFlags returns the library search flags for the shared prefix, plus
// workarounds for the linker shipped with the installed clang.
func (c *Context) LinkerFlags() (string, error) {
	if c.linkerFlags != "" {
		return c.linkerFlags, nil
	}
	out, err := c.Output("", "clang", "--version")
	if err != nil {
		return "", err
	}
	c.linkerFlags = "-L" + c.LibDir() + clangLinkerFlags(out)
	return c.linkerFlags, nil
}

func clangLinkerFlags(versionOutput string) string {
	m := clangVersionRE.FindStringSubmatch(versionOutput)
	if m == nil {
		return ""
	}
	version := m[1]
	var flags string
	if gnu.Compare(version, "1500") >= 0 {
		flags += " -Wl,-no_warn_duplicate_libraries"
	}
	major, rest, _ := strings.Cut(version, ".")
	minor, _, _ := strings.Cut(rest, ".")
	if major == "1500" && (minor == "" || atoi(minor) == 0) {
		// Xcode 15.0 linker breaks weak symbols on older deployment targets
		flags += " -Wl,-ld_classic"
	}
	return flags
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// UpdateFlagsEnv appends value, the sysroot and the deployment target to
// the environment variable name.
func (c *Context) UpdateFlagsEnv(name, value string) {
	if sdk := c.SDKPath(); sdk != "" {
		value += " -isysroot " + sdk
	}
	if v := c.OSVersion(); !v.IsZero() {
		value += " -mmacosx-version-min=" + v.String()
	}
	if cur, ok := c.Env[name]; ok {
		c.Env[name] = cur + " " + value
	} else {
		c.Env[name] = value
	}
}

// ValidateMinimumVersion fails when the deployment target or the SDK is
// older than version.
func (c *Context) ValidateMinimumVersion(version string) error {
	want, err := ParseVersion(version)
	if err != nil {
		return err
	}
	if v := c.OSVersion(); !v.IsZero() && v.Less(want) {
		return fmt.Errorf("minimum OS version requirement is not met: %s < %s", v, want)
	}
	if v := c.SDKVersion(); !v.IsZero() && v.Less(want) {
		return fmt.Errorf("minimum SDK version requirement is not met: %s < %s", v, want)
	}
	return nil
}

// HasSourceFile reports whether rel exists in the source tree.
func (c *Context) HasSourceFile(rel string) bool {
	_, err := os.Stat(filepath.Join(c.Source, rel))
	return err == nil
}

// DeleteInstallDir removes the install directory. Project generation
// keeps it.
func (c *Context) DeleteInstallDir() error {
	if c.Xcode || c.InstallDir == "" {
		return nil
	}
	return os.RemoveAll(c.InstallDir)
}

// Command returns a command that runs in dir with the build environment.
func (c *Context) Command(dir, name string, args ...string) *xexec.Cmd {
	cmd := xexec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = c.Env.Environ()
	return cmd
}

// Run runs name in dir with the build environment.
func (c *Context) Run(dir, name string, args ...string) error {
	return c.Runner.Run(c.Context(), c.Command(dir, name, args...))
}

// Output runs name in dir and returns its standard output.
func (c *Context) Output(dir, name string, args ...string) (string, error) {
	return xexec.Output(c.Context(), c.Runner, c.Command(dir, name, args...))
}

// RunPkgConfig queries the prefix's pkg-config for static linking.
func (c *Context) RunPkgConfig(args ...string) (string, error) {
	if err := os.MkdirAll(c.BuildDir, 0o755); err != nil {
		return "", err
	}
	out, err := c.Output(c.BuildDir, filepath.Join(c.BinDir(), "pkg-config"), append([]string{"--static"}, args...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// ResetCycle prepares c for building one platform: the environment is
// reset to base and the option set is emptied.
func (c *Context) ResetCycle(base Env) {
	c.Env = base.Clone()
	c.Options = NewOptions()
}
