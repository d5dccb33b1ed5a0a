// Package build drives a target through source preparation, the
// per-architecture build cycles, merging and signing.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/internal/config"
	"github.com/goplus/unibuild/internal/console"
	"github.com/goplus/unibuild/internal/env"
	"github.com/goplus/unibuild/internal/fetch"
	"github.com/goplus/unibuild/internal/machofix"
	"github.com/goplus/unibuild/internal/platform"
	"github.com/goplus/unibuild/internal/prefix"
	"github.com/goplus/unibuild/internal/sign"
	"github.com/goplus/unibuild/internal/targets"
	"github.com/goplus/unibuild/internal/universal"
	"github.com/goplus/unibuild/internal/vcs"
	"github.com/goplus/unibuild/internal/xexec"
)

// Options configures a Builder.
type Options struct {
	Config   *config.Config
	Registry *targets.Registry
	Runner   xexec.Runner
	Console  *console.Console

	// Env is the base environment of every build cycle. Nil copies the
	// process environment.
	Env formula.Env
	// HostArch overrides host architecture detection.
	HostArch string

	// Fetcher and VCS serve recipe source acquisition; nil selects the
	// defaults.
	Fetcher *fetch.Fetcher
	VCS     vcs.VCS
}

// Builder runs one build invocation.
type Builder struct {
	opts   Options
	layout env.Layout
	host   string

	target    formula.Target
	c         *formula.Context
	baseEnv   formula.Env
	recordDir string
}

// New returns a Builder for opts.
func New(opts Options) *Builder {
	if opts.Registry == nil {
		opts.Registry = targets.Default()
	}
	if opts.Console == nil {
		opts.Console = console.Stdout(opts.Config.Verbose)
	}
	if opts.Runner == nil {
		opts.Runner = &xexec.Exec{Log: opts.Console}
	}
	if opts.Env == nil {
		opts.Env = formula.EnvFromOS()
	}
	if opts.HostArch == "" {
		opts.HostArch = platform.HostArch()
	}
	return &Builder{opts: opts, host: opts.HostArch}
}

// Context returns the build context, available once Run has resolved the
// target.
func (b *Builder) Context() *formula.Context { return b.c }

// Target returns the resolved target.
func (b *Builder) Target() formula.Target { return b.target }

// Run builds the configured target. Configuration problems are reported
// as *config.ValidationError before any external command runs.
func (b *Builder) Run(ctx context.Context) error {
	if err := b.setup(ctx); err != nil {
		return err
	}
	c, target := b.c, b.target
	log := b.opts.Console

	removeQuarantine(b.layout.Root)

	if err := target.PrepareSource(c); err != nil {
		return fmt.Errorf("prepare source of %s: %w", target.Name(), err)
	}

	if target.Destination() == formula.DestinationOutput {
		c.InstallDir = filepath.Join(c.OutputDir, target.Name())
	} else {
		c.InstallDir = filepath.Join(c.DepsDir, target.Name())
	}
	if err := c.DeleteInstallDir(); err != nil {
		return err
	}

	if err := b.syncPrefix(); err != nil {
		return err
	}

	version := c.SourceVersion()
	if version != "" {
		if c.Xcode {
			log.Infof("Generating %s", version)
		} else {
			log.Infof("Building %s", version)
		}
	}

	var archs []string
	if target.MultiPlatform() && !c.Xcode {
		var err error
		if archs, err = b.buildPlatforms(); err != nil {
			return err
		}
	} else {
		if err := b.cycle(); err != nil {
			return err
		}
		archs = []string{c.Arch()}
	}

	if target.Destination() == formula.DestinationOutput {
		s := &sign.Signer{Runner: c.Runner, Env: b.baseEnv.Environ()}
		if err := s.SignOutputs(ctx, c.InstallDir, target.Outputs()); err != nil {
			return err
		}
	}

	return SaveRecord(b.recordDir, &Record{
		Target:     target.Name(),
		Version:    version,
		Archs:      archs,
		InstallDir: c.InstallDir,
		Xcode:      c.Xcode,
		BuildTime:  time.Now(),
	})
}

// setup validates the configuration, resolves the target and fills the
// build context.
func (b *Builder) setup(ctx context.Context) error {
	cfg := b.opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	layout, err := cfg.Layout()
	if err != nil {
		return err
	}
	b.layout = layout

	pc := cfg.Platform(layout)
	pc.HostArch = b.host
	platforms, err := platform.Catalog(pc)
	if err != nil {
		return &config.ValidationError{Problems: []string{err.Error()}}
	}

	c := formula.NewContext(ctx)
	c.RootDir = layout.Root
	c.CoreDir = layout.Core
	c.CoreDepsDir = layout.CoreDeps()
	c.DepsDir = layout.Deps()
	c.PrefixDir = layout.Prefix()
	c.PatchDir = layout.Patch()
	c.CorePatchDir = layout.CorePatch()
	c.Env = b.opts.Env.Clone()
	c.Platforms = platforms
	c.Platform = platforms[0]
	c.Jobs = cfg.JobCount()
	c.Xcode = cfg.Xcode
	c.Verbose = cfg.Verbose
	c.Runner = b.opts.Runner
	c.Console = b.opts.Console
	c.Fetcher = b.opts.Fetcher
	c.VCS = b.opts.VCS

	if c.TempDir, err = pathOr(cfg.TempPath, layout.Temp()); err != nil {
		return err
	}
	if c.SourcesDir, err = pathOr(cfg.SourcePath, layout.Sources()); err != nil {
		return err
	}
	if c.OutputDir, err = pathOr(cfg.OutputPath, layout.Output()); err != nil {
		return err
	}

	if err := b.resolveTarget(c); err != nil {
		return err
	}

	if err := os.MkdirAll(c.TempDir, 0o755); err != nil {
		return err
	}
	c.Env["TMPDIR"] = c.TempDir + string(filepath.Separator)
	if !c.ExternalSource {
		if err := os.MkdirAll(c.SourcesDir, 0o755); err != nil {
			return err
		}
	}

	for _, t := range b.opts.Registry.All() {
		if t == b.target {
			continue
		}
		if err := t.Initialize(c); err != nil {
			return fmt.Errorf("initialize %s: %w", t.Name(), err)
		}
	}

	if c.BuildDir, err = pathOr(cfg.BuildPath, layout.Build(b.target.Name(), c.Xcode)); err != nil {
		return err
	}
	b.recordDir = c.BuildDir
	b.baseEnv = c.Env
	b.c = c
	return nil
}

func (b *Builder) resolveTarget(c *formula.Context) error {
	cfg := b.opts.Config
	if cfg.Target != "" {
		t, ok := b.opts.Registry.Lookup(cfg.Target)
		if !ok {
			return &config.ValidationError{Problems: []string{fmt.Sprintf("unknown target %q", cfg.Target)}}
		}
		b.target = t
		c.Source = filepath.Join(c.SourcesDir, t.Name())
		c.ExternalSource = false
		return nil
	}

	source, err := filepath.Abs(cfg.Source)
	if err != nil {
		return err
	}
	c.Source = source
	c.ExternalSource = true
	t, ok := b.opts.Registry.Detect(c)
	if !ok {
		return &config.ValidationError{Problems: []string{fmt.Sprintf("cannot detect a target for source %s", source)}}
	}
	b.target = t
	return nil
}

func pathOr(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	return filepath.Abs(path)
}

// syncPrefix rebuilds the shared prefix from the installed dependencies.
func (b *Builder) syncPrefix() error {
	c := b.c
	if err := os.MkdirAll(c.PrefixDir, 0o755); err != nil {
		return err
	}
	srcs, err := prefix.Sources(c.CoreDepsDir, c.DepsDir)
	if err != nil {
		return fmt.Errorf("list dependencies: %w", err)
	}
	stats, err := prefix.Sync(srcs, c.PrefixDir)
	if err != nil {
		return fmt.Errorf("sync prefix: %w", err)
	}
	if stats.Changed() {
		b.opts.Console.Debugf("prefix: %s", stats)
	}
	return nil
}

// buildPlatforms runs one cycle per supported platform and merges the
// install trees into the final install directory.
func (b *Builder) buildPlatforms() ([]string, error) {
	c, target := b.c, b.target
	baseBuild, baseInstall := c.BuildDir, c.InstallDir
	defer func() {
		c.BuildDir, c.InstallDir = baseBuild, baseInstall
	}()

	var archs, installs []string
	for _, p := range c.Platforms {
		if slices.Contains(target.UnsupportedArchs(), p.Arch) {
			b.opts.Console.Debugf("skipping %s, unsupported by %s", p.Arch, target.Name())
			continue
		}
		c.Platform = p
		c.BuildDir = filepath.Join(baseBuild, "build_"+p.Arch)
		if p.Arch == b.host {
			c.NativeBuildDir = c.BuildDir
		}
		c.InstallDir = filepath.Join(baseBuild, "install_"+p.Arch)
		if err := c.DeleteInstallDir(); err != nil {
			return nil, err
		}

		b.opts.Console.Actionf("%s %s", target.Name(), p.Arch)
		if err := b.cycle(); err != nil {
			return nil, fmt.Errorf("%s for %s: %w", target.Name(), p.Arch, err)
		}
		archs = append(archs, p.Arch)
		installs = append(installs, c.InstallDir)
	}

	// recipes may have changed the environment of the last cycle
	env := b.baseEnv.Environ()
	m := &universal.Merger{
		Runner: c.Runner,
		Env:    env,
		Signer: &sign.Signer{Runner: c.Runner, Env: env},
		Log:    b.opts.Console,
	}
	if err := m.Merge(c.Context(), existing(installs), baseInstall); err != nil {
		return nil, fmt.Errorf("merge %s: %w", target.Name(), err)
	}
	return archs, nil
}

// cycle runs configure, build and post-build with a fresh option set and
// environment, then repairs the installed Mach-O files.
func (b *Builder) cycle() error {
	c, target := b.c, b.target
	c.ResetCycle(b.baseEnv)

	if err := target.Configure(c); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	if err := target.Build(c); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := target.PostBuild(c); err != nil {
		return fmt.Errorf("post-build: %w", err)
	}

	if _, err := os.Stat(c.InstallDir); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	f := &machofix.Fixer{Runner: c.Runner, Env: c.Env.Environ()}
	return f.Fix(c.Context(), c.InstallDir)
}

// existing drops install trees a cycle did not create.
func existing(dirs []string) []string {
	var out []string
	for _, d := range dirs {
		if _, err := os.Stat(d); err == nil {
			out = append(out, d)
		}
	}
	return out
}
