package env

import (
	"os"
	"path/filepath"
)

// Layout names the directories of a build root.
//
//	<root>/
//	  build/<target>/{make,xcode}/   # per-target build trees
//	  deps/<name>/                   # installed dependencies
//	  output/<name>/                 # installed final products
//	  patch/                         # local source patches
//	  prefix/                        # union of all dependency trees
//	  sdk/MacOSX<version>.sdk/       # optional SDKs
//	  source/<target>/               # downloaded and extracted sources
//	  temp/
//
// The core directory holds dependencies and patches shared by every root;
// it defaults to the root itself.
type Layout struct {
	Root string
	Core string
}

// New returns the layout of root with its shared files in core. An empty
// core selects root.
func New(root, core string) (Layout, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, err
	}
	if core == "" {
		core = root
	} else if core, err = filepath.Abs(core); err != nil {
		return Layout{}, err
	}
	return Layout{Root: root, Core: core}, nil
}

// WorkDir returns the default root, the current working directory.
func WorkDir() (string, error) {
	return os.Getwd()
}

func (l Layout) CoreDeps() string  { return filepath.Join(l.Core, "deps") }
func (l Layout) CorePatch() string { return filepath.Join(l.Core, "patch") }
func (l Layout) Deps() string      { return filepath.Join(l.Root, "deps") }
func (l Layout) Patch() string     { return filepath.Join(l.Root, "patch") }
func (l Layout) Prefix() string    { return filepath.Join(l.Root, "prefix") }
func (l Layout) Sources() string   { return filepath.Join(l.Root, "source") }
func (l Layout) Temp() string      { return filepath.Join(l.Root, "temp") }
func (l Layout) Output() string    { return filepath.Join(l.Root, "output") }

// Build returns the default build directory of target.
func (l Layout) Build(target string, xcode bool) string {
	kind := "make"
	if xcode {
		kind = "xcode"
	}
	return filepath.Join(l.Root, "build", target, kind)
}
