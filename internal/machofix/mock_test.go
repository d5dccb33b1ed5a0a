package machofix

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/goplus/unibuild/internal/xexec"
)

var thinHeader = []byte{0xcf, 0xfa, 0xed, 0xfe, 0x0c, 0x00, 0x00, 0x01}

// image models the load commands of one Mach-O file.
type image struct {
	id     string
	deps   []string
	rpaths []string
}

// toolchain fakes otool and install_name_tool on top of images.
type toolchain struct {
	t      *testing.T
	images map[string]*image
	edits  [][]string
}

func newToolchain(t *testing.T) *toolchain {
	return &toolchain{t: t, images: make(map[string]*image)}
}

func (tc *toolchain) add(t *testing.T, path string, img *image) {
	t.Helper()
	if err := os.WriteFile(path, thinHeader, 0o755); err != nil {
		t.Fatal(err)
	}
	tc.images[path] = img
}

func (tc *toolchain) render(img *image) string {
	var b strings.Builder
	n := 0
	section := func(cmd, key, value string) {
		fmt.Fprintf(&b, "Load command %d\n          cmd %s\n      cmdsize 56\n         %s %s (offset 24)\n", n, cmd, key, value)
		n++
	}
	fmt.Fprintf(&b, "Load command %d\n      cmd LC_SEGMENT_64\n  cmdsize 72\n  segname __PAGEZERO\n", n)
	n++
	if img.id != "" {
		section("LC_ID_DYLIB", "name", img.id)
	}
	for _, d := range img.deps {
		section("LC_LOAD_DYLIB", "name", d)
	}
	for _, r := range img.rpaths {
		section("LC_RPATH", "path", r)
	}
	return b.String()
}

func (tc *toolchain) Run(ctx context.Context, c *xexec.Cmd) error {
	switch c.Path {
	case "otool":
		img := tc.images[c.Args[len(c.Args)-1]]
		if img == nil {
			return fmt.Errorf("otool: not an object: %s", c.Args[len(c.Args)-1])
		}
		_, err := io.WriteString(c.Stdout, c.Args[len(c.Args)-1]+":\n"+tc.render(img))
		return err
	case "install_name_tool":
		tc.edits = append(tc.edits, append([]string(nil), c.Args...))
		return tc.apply(c.Args)
	}
	tc.t.Errorf("unexpected command %s", c)
	return nil
}

func (tc *toolchain) apply(args []string) error {
	img := tc.images[args[len(args)-1]]
	switch args[0] {
	case "-id":
		img.id = args[1]
	case "-change":
		for i, d := range img.deps {
			if d == args[1] {
				img.deps[i] = args[2]
			}
		}
	case "-rpath":
		for _, r := range img.rpaths {
			if r == args[2] {
				return fmt.Errorf("would duplicate path %s", args[2])
			}
		}
		for i, r := range img.rpaths {
			if r == args[1] {
				img.rpaths[i] = args[2]
				return nil
			}
		}
		return fmt.Errorf("no LC_RPATH %s", args[1])
	case "-delete_rpath":
		for i, r := range img.rpaths {
			if r == args[1] {
				img.rpaths = append(img.rpaths[:i], img.rpaths[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("no LC_RPATH %s", args[1])
	case "-add_rpath":
		for _, r := range img.rpaths {
			if r == args[1] {
				return fmt.Errorf("would duplicate path %s", args[1])
			}
		}
		img.rpaths = append(img.rpaths, args[1])
	}
	return nil
}
