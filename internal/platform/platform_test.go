package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goplus/unibuild/formula"
)

func arches(ps []*formula.Platform) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Arch)
	}
	return out
}

func TestCatalogOrder(t *testing.T) {
	tests := []struct {
		host string
		want []string
	}{
		{"x86_64", []string{"x86_64", "arm64"}},
		{"arm64", []string{"arm64", "x86_64"}},
		{"riscv64", []string{"x86_64", "arm64"}},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			ps, err := Catalog(Config{RootDir: t.TempDir(), PrefixDir: "/p", HostArch: tt.host})
			if err != nil {
				t.Fatalf("Catalog() error = %v", err)
			}
			got := arches(ps)
			if len(got) != len(tt.want) || got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Errorf("Catalog() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCatalogDefaults(t *testing.T) {
	ps, err := Catalog(Config{RootDir: t.TempDir(), PrefixDir: "/p", HostArch: "x86_64"})
	if err != nil {
		t.Fatal(err)
	}
	x86 := Lookup(ps, "x86_64")
	arm := Lookup(ps, "arm64")
	if x86.OSVersion.String() != "10.15" || arm.OSVersion.String() != "11.0" {
		t.Errorf("versions = %s, %s", x86.OSVersion, arm.OSVersion)
	}
	if x86.Host != HostX86_64 || arm.Host != HostARM64 {
		t.Errorf("hosts = %s, %s", x86.Host, arm.Host)
	}
	if arm.CC != "/p/bin/aarch64-apple-darwin-gcc" || arm.CXX != "/p/bin/aarch64-apple-darwin-g++" {
		t.Errorf("compilers = %s, %s", arm.CC, arm.CXX)
	}
	if x86.SDKPath != "" {
		t.Errorf("SDKPath = %q, want empty", x86.SDKPath)
	}
}

func TestCatalogSDKProbe(t *testing.T) {
	root := t.TempDir()
	sdk := filepath.Join(root, "sdk", "MacOSX12.3.sdk")
	if err := os.MkdirAll(sdk, 0o755); err != nil {
		t.Fatal(err)
	}
	ps, err := Catalog(Config{
		RootDir:        root,
		HostArch:       "arm64",
		DisableX86_64:  true,
		OSVersionARM64: formula.MustParseVersion("12.3"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].SDKPath != sdk {
		t.Errorf("SDKPath = %q, want %q", ps[0].SDKPath, sdk)
	}

	ps, err = Catalog(Config{RootDir: root, HostArch: "arm64", DisableX86_64: true, SDKPathARM64: "/explicit/MacOSX.sdk"})
	if err != nil {
		t.Fatal(err)
	}
	if ps[0].SDKPath != "/explicit/MacOSX.sdk" {
		t.Errorf("SDKPath = %q", ps[0].SDKPath)
	}
}

func TestCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"both disabled", Config{DisableX86_64: true, DisableARM64: true}},
		{"x86 below floor", Config{OSVersionX86_64: formula.MustParseVersion("10.9")}},
		{"arm below floor", Config{OSVersionARM64: formula.MustParseVersion("10.15")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.RootDir = t.TempDir()
			tt.cfg.HostArch = "x86_64"
			if _, err := Catalog(tt.cfg); err == nil {
				t.Error("Catalog() succeeded, want error")
			}
		})
	}
}

func TestHostArch(t *testing.T) {
	switch got := HostArch(); got {
	case "x86_64", "arm64":
	default:
		t.Logf("HostArch() = %q on an unsupported machine", got)
	}
}
