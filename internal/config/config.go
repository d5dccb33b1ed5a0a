// Package config holds the user-facing build configuration: defaults, an
// optional YAML file and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/internal/env"
	"github.com/goplus/unibuild/internal/platform"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the build root.
const FileName = "unibuild.yaml"

// Config is everything a build invocation can be told.
type Config struct {
	Root string `yaml:"root,omitempty"`
	Core string `yaml:"core,omitempty"`

	// Exactly one of Target and Source is set.
	Target string `yaml:"target,omitempty"`
	Source string `yaml:"source,omitempty"`

	Xcode   bool `yaml:"xcode,omitempty"`
	Verbose bool `yaml:"verbose,omitempty"`
	Jobs    int  `yaml:"jobs,omitempty"`

	DisableX86_64   bool   `yaml:"disable_x64,omitempty"`
	DisableARM64    bool   `yaml:"disable_arm,omitempty"`
	OSVersionX86_64 string `yaml:"os_version_x64,omitempty"`
	OSVersionARM64  string `yaml:"os_version_arm,omitempty"`
	SDKPathX86_64   string `yaml:"sdk_path_x64,omitempty"`
	SDKPathARM64    string `yaml:"sdk_path_arm,omitempty"`

	SourcePath string `yaml:"source_path,omitempty"`
	BuildPath  string `yaml:"build_path,omitempty"`
	OutputPath string `yaml:"output_path,omitempty"`
	TempPath   string `yaml:"temp_path,omitempty"`
}

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Load reads a YAML configuration file. A missing file yields an empty
// Config unless required is set.
func Load(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// BindFlags registers the configuration flags on fs, storing into c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Root, "root", c.Root, "build root directory (default: current directory)")
	fs.StringVar(&c.Core, "core", c.Core, "directory with shared deps and patches (default: build root)")
	fs.StringVar(&c.Target, "target", c.Target, "target to build")
	fs.StringVar(&c.Source, "source", c.Source, "path to a target's source code")
	fs.BoolVar(&c.Xcode, "xcode", c.Xcode, "generate Xcode project instead of build")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "print all executed commands")
	fs.IntVarP(&c.Jobs, "jobs", "j", c.Jobs, "number of parallel jobs (default: number of CPUs)")
	fs.BoolVar(&c.DisableX86_64, "disable-x64", c.DisableX86_64, "disable x86_64 support")
	fs.BoolVar(&c.DisableARM64, "disable-arm", c.DisableARM64, "disable arm64 support")
	fs.StringVar(&c.OSVersionX86_64, "os-version-x64", c.OSVersionX86_64, "macOS deployment version for x86_64")
	fs.StringVar(&c.OSVersionARM64, "os-version-arm", c.OSVersionARM64, "macOS deployment version for arm64")
	fs.StringVar(&c.SDKPathX86_64, "sdk-path-x64", c.SDKPathX86_64, "path to macOS SDK for x86_64")
	fs.StringVar(&c.SDKPathARM64, "sdk-path-arm", c.SDKPathARM64, "path to macOS SDK for arm64")
	fs.StringVar(&c.SourcePath, "source-path", c.SourcePath, "path to store downloaded source code")
	fs.StringVar(&c.BuildPath, "build-path", c.BuildPath, "target build path")
	fs.StringVar(&c.OutputPath, "output-path", c.OutputPath, "output path for main targets")
	fs.StringVar(&c.TempPath, "temp-path", c.TempPath, "path to temporary files directory")
}

// Overlay replaces c with file and re-applies every flag that was set
// explicitly on fs. Flags must have been bound with BindFlags.
func (c *Config) Overlay(file *Config, fs *pflag.FlagSet) error {
	changed := make(map[string]string)
	var order []string
	fs.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
		order = append(order, f.Name)
	})
	*c = *file
	for _, name := range order {
		if err := fs.Set(name, changed[name]); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks c without touching the file system beyond the source
// directory. All problems are reported together.
func (c *Config) Validate() error {
	verr := &ValidationError{}
	switch {
	case c.Target != "" && c.Source != "":
		verr.add("target and source are mutually exclusive")
	case c.Target == "" && c.Source == "":
		verr.add("either target or source is required")
	}
	if c.Source != "" {
		if fi, err := os.Stat(c.Source); err != nil || !fi.IsDir() {
			verr.add("source %s is not a directory", c.Source)
		}
	}
	if c.DisableX86_64 && c.DisableARM64 {
		verr.add("cannot disable all target architectures")
	}
	if c.Jobs < 0 {
		verr.add("jobs must be positive, got %d", c.Jobs)
	}
	checkVersion(verr, formula.ArchX86_64, c.OSVersionX86_64, platform.MinX86_64)
	checkVersion(verr, formula.ArchARM64, c.OSVersionARM64, platform.MinARM64)

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func checkVersion(verr *ValidationError, arch, s string, floor formula.Version) {
	if s == "" {
		return
	}
	v, err := formula.ParseVersion(s)
	if err != nil {
		verr.add("%s OS version: %v", arch, err)
		return
	}
	if v.Less(floor) {
		verr.add("minimum OS version for %s is %s, got %s", arch, floor, v)
	}
}

// JobCount returns the configured parallelism or the number of CPUs.
func (c *Config) JobCount() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}

// Layout resolves the build root.
func (c *Config) Layout() (env.Layout, error) {
	root := c.Root
	if root == "" {
		wd, err := env.WorkDir()
		if err != nil {
			return env.Layout{}, err
		}
		root = wd
	}
	return env.New(root, c.Core)
}

// Platform converts the architecture settings for platform.Catalog.
// Validate must have succeeded.
func (c *Config) Platform(l env.Layout) platform.Config {
	pc := platform.Config{
		RootDir:       l.Root,
		PrefixDir:     l.Prefix(),
		DisableX86_64: c.DisableX86_64,
		DisableARM64:  c.DisableARM64,
		SDKPathX86_64: c.SDKPathX86_64,
		SDKPathARM64:  c.SDKPathARM64,
	}
	if c.OSVersionX86_64 != "" {
		pc.OSVersionX86_64, _ = formula.ParseVersion(c.OSVersionX86_64)
	}
	if c.OSVersionARM64 != "" {
		pc.OSVersionARM64, _ = formula.ParseVersion(c.OSVersionARM64)
	}
	return pc
}

// Abs returns path made absolute, or "" for an empty path.
func Abs(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return filepath.Abs(path)
}
