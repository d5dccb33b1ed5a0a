package formula

import "path/filepath"

// Architecture names as used by Apple tools.
const (
	ArchX86_64 = "x86_64"
	ArchARM64  = "arm64"
)

// Platform is one architecture a target can be built for.
type Platform struct {
	Arch      string
	Host      string // target triple, e.g. aarch64-apple-darwin
	OSVersion Version
	SDKPath   string // empty when no SDK was found
	CC        string
	CXX       string
}

// NewPlatform returns a Platform whose compilers live in prefixDir/bin.
func NewPlatform(arch, host string, osVersion Version, sdkPath, prefixDir string) *Platform {
	return &Platform{
		Arch:      arch,
		Host:      host,
		OSVersion: osVersion,
		SDKPath:   sdkPath,
		CC:        filepath.Join(prefixDir, "bin", host+"-gcc"),
		CXX:       filepath.Join(prefixDir, "bin", host+"-g++"),
	}
}
