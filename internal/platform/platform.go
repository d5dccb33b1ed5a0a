// Package platform enumerates the architectures a build targets.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/goplus/unibuild/formula"
	"golang.org/x/sys/unix"
)

// Target triples handed to compilers.
const (
	HostX86_64 = "x86_64-apple-darwin"
	HostARM64  = "aarch64-apple-darwin"
)

// Lowest deployment targets each architecture supports.
var (
	MinX86_64 = formula.MustParseVersion("10.15")
	MinARM64  = formula.MustParseVersion("11.0")
)

// Config selects and tunes the enabled architectures.
type Config struct {
	RootDir   string
	PrefixDir string
	// HostArch is the architecture of the build machine. Empty means
	// detect with HostArch.
	HostArch string

	DisableX86_64 bool
	DisableARM64  bool

	// Zero versions select the architecture minimum.
	OSVersionX86_64 formula.Version
	OSVersionARM64  formula.Version

	SDKPathX86_64 string
	SDKPathARM64  string
}

type archSpec struct {
	arch     string
	host     string
	floor    formula.Version
	disabled bool
	version  formula.Version
	sdk      string
}

// Catalog returns the enabled platforms with the host architecture first.
func Catalog(cfg Config) ([]*formula.Platform, error) {
	specs := []archSpec{
		{formula.ArchX86_64, HostX86_64, MinX86_64, cfg.DisableX86_64, cfg.OSVersionX86_64, cfg.SDKPathX86_64},
		{formula.ArchARM64, HostARM64, MinARM64, cfg.DisableARM64, cfg.OSVersionARM64, cfg.SDKPathARM64},
	}

	var platforms []*formula.Platform
	for _, s := range specs {
		if s.disabled {
			continue
		}
		version := s.version
		if version.IsZero() {
			version = s.floor
		} else if version.Less(s.floor) {
			return nil, fmt.Errorf("minimum OS version for %s is %s, got %s", s.arch, s.floor, version)
		}
		sdk, err := sdkPath(cfg.RootDir, s.sdk, version)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, formula.NewPlatform(s.arch, s.host, version, sdk, cfg.PrefixDir))
	}
	if len(platforms) == 0 {
		return nil, fmt.Errorf("no target architectures enabled")
	}

	host := cfg.HostArch
	if host == "" {
		host = HostArch()
	}
	for i, p := range platforms {
		if p.Arch == host && i != 0 {
			platforms[0], platforms[i] = platforms[i], platforms[0]
			break
		}
	}
	return platforms, nil
}

func sdkPath(root, override string, version formula.Version) (string, error) {
	if override != "" {
		return filepath.Abs(override)
	}
	probe := filepath.Join(root, "sdk", "MacOSX"+version.String()+".sdk")
	if fi, err := os.Stat(probe); err == nil && fi.IsDir() {
		return probe, nil
	}
	return "", nil
}

// Lookup returns the platform for arch, or nil.
func Lookup(platforms []*formula.Platform, arch string) *formula.Platform {
	for _, p := range platforms {
		if p.Arch == arch {
			return p
		}
	}
	return nil
}

// HostArch returns the Apple name of the machine architecture.
func HostArch() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		if arch := normalize(unix.ByteSliceToString(uts.Machine[:])); arch != "" {
			return arch
		}
	}
	return normalize(runtime.GOARCH)
}

func normalize(machine string) string {
	switch machine {
	case "x86_64", "amd64":
		return formula.ArchX86_64
	case "arm64", "aarch64":
		return formula.ArchARM64
	}
	return machine
}
