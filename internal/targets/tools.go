package targets

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/unibuild/formula"
	"github.com/goplus/unibuild/pkgs/buildsys"
	"github.com/goplus/unibuild/pkgs/buildsys/autotools"
	"github.com/goplus/unibuild/pkgs/buildsys/cmake"
)

// CMake builds CMake with a bootstrapped native cmake.
type CMake struct {
	*cmake.Target
}

func NewCMake() *CMake {
	t := cmake.New("cmake", formula.DestinationOutput)
	t.OutputFiles = []string{"bin/cmake", "bin/ctest", "bin/cpack"}
	return &CMake{t}
}

func (t *CMake) Detect(c *formula.Context) bool {
	return c.HasSourceFile("Source/cmake.h")
}

func (t *CMake) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://github.com/Kitware/CMake/releases/download/v3.31.4/cmake-3.31.4.tar.gz",
		"a6130bfe75f5ba5c73e672e34359f7c0a1931521957e8393a5c2922c8b0f7f25")
}

func (t *CMake) Configure(c *formula.Context) error {
	if c.NativeBuildDir == "" {
		return t.Target.Configure(c)
	}
	cmk := filepath.Join(c.NativeBuildDir, "__bootstrap__", "Bootstrap.cmk")
	if c.BuildDir == c.NativeBuildDir {
		if _, err := os.Stat(filepath.Join(cmk, "cmake")); err != nil {
			dir := filepath.Dir(cmk)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			if err := c.Run(dir, filepath.Join(c.Source, "configure"), "--parallel="+strconv.Itoa(c.Jobs)); err != nil {
				return err
			}
		}
	}
	c.Env.Prepend("PATH", cmk)
	return t.Target.Configure(c)
}

// Gmake builds GNU make and installs it as gmake.
type Gmake struct {
	*autotools.Target
}

func NewGmake() *Gmake {
	return &Gmake{autotools.NewDependency("gmake")}
}

func (t *Gmake) Detect(c *formula.Context) bool {
	return c.HasSourceFile("doc/make.1")
}

func (t *Gmake) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://ftp.gnu.org/gnu/make/make-4.4.1.tar.lz",
		"8814ba072182b605d156d7589c19a43b89fc58ea479b9355146160946f8cf6e9")
}

func (t *Gmake) Configure(c *formula.Context) error {
	opts := c.Options
	opts.Set("--datarootdir", "/usr/local/share")
	opts.Set("--includedir", "/usr/local/include")
	opts.Set("--libdir", "/usr/local/lib")
	return t.Target.Configure(c)
}

func (t *Gmake) PostBuild(c *formula.Context) error {
	return buildsys.CopyToBin(c, "make", t.Name())
}

// Nasm builds the Netwide Assembler.
type Nasm struct {
	*autotools.Target
}

func NewNasm() *Nasm {
	return &Nasm{autotools.NewDependency("nasm")}
}

func (t *Nasm) Detect(c *formula.Context) bool {
	return c.HasSourceFile("nasm.txt")
}

func (t *Nasm) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://fossies.org/linux/misc/nasm-2.16.03.tar.xz",
		"1412a1c760bbd05db026b6c0d1657affd6631cd0a63cddb6f73cc6d4aa616148",
		"nasm-deterministic-date")
}

// Ninja builds the ninja build tool.
type Ninja struct {
	*cmake.Target
}

func NewNinja() *Ninja {
	return &Ninja{cmake.NewStaticDependency("ninja")}
}

func (t *Ninja) Detect(c *formula.Context) bool {
	return c.HasSourceFile("src/ninja.cc")
}

func (t *Ninja) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://github.com/ninja-build/ninja/archive/refs/tags/v1.12.1.tar.gz",
		"821bdff48a3f683bc4bb3b6f0b5fe7b2d647cf65d52aeb63328c91a6c6df285a")
}

func (t *Ninja) Configure(c *formula.Context) error {
	c.Options.Set("BUILD_TESTING", "NO")
	return t.Target.Configure(c)
}

// Pkgconf builds pkgconf with search paths that do not depend on the
// install location.
type Pkgconf struct {
	*autotools.Target
}

func NewPkgconf() *Pkgconf {
	return &Pkgconf{autotools.NewStaticDependency("pkgconf")}
}

func (t *Pkgconf) Detect(c *formula.Context) bool {
	return c.HasSourceFile("libpkgconf/libpkgconf.h")
}

func (t *Pkgconf) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://distfiles.ariadne.space/pkgconf/pkgconf-2.4.3.tar.xz",
		"51203d99ed573fa7344bf07ca626f10c7cc094e0846ac4aa0023bd0c83c25a41")
}

func (t *Pkgconf) Configure(c *formula.Context) error {
	const (
		prefix = "/usr/local"
		libdir = prefix + "/lib"
		pkgdir = libdir + "/pkgconfig"
	)
	opts := c.Options
	opts.Set("--with-personality-dir", pkgdir+"/personality.d")
	opts.Set("--with-pkg-config-dir", pkgdir)
	opts.Set("--with-system-includedir", prefix+"/include")
	opts.Set("--with-system-libdir", libdir)
	return t.Target.Configure(c)
}

func (t *Pkgconf) PostBuild(c *formula.Context) error {
	return buildsys.CopyToBin(c, t.Name(), "")
}

// Yasm builds the Yasm assembler.
type Yasm struct {
	*autotools.Target
}

func NewYasm() *Yasm {
	return &Yasm{autotools.NewDependency("yasm")}
}

func (t *Yasm) Detect(c *formula.Context) bool {
	return c.HasSourceFile("libyasm.h")
}

func (t *Yasm) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://www.tortall.net/projects/yasm/releases/yasm-1.3.0.tar.gz",
		"3dce6601b495f5b3d45b59f7d2492a340ee7e84b5beca17e48f862502bd5603f")
}

// Meson packs the meson sources into a self-contained Python zipapp.
type Meson struct {
	formula.BaseTarget
}

func NewMeson() *Meson {
	return &Meson{formula.BaseTarget{TargetName: "meson", Dest: formula.DestinationOutput, SinglePlatform: true}}
}

func (t *Meson) Detect(c *formula.Context) bool {
	return c.HasSourceFile("meson.py")
}

func (t *Meson) PrepareSource(c *formula.Context) error {
	return c.DownloadSource(
		"https://github.com/mesonbuild/meson/releases/download/1.7.2/meson-1.7.2.tar.gz",
		"4d40d63aa748a9c139cc41ab9bffe43edd113c5639d78bde81544ca955aea890")
}

func (t *Meson) PostBuild(c *formula.Context) error {
	dir := filepath.Join(c.InstallDir, "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return writeZipApp(filepath.Join(dir, t.Name()), c.Source, "mesonbuild", "mesonbuild.mesonmain", "main")
}
