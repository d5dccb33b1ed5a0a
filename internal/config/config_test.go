package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestValidate(t *testing.T) {
	src := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{"target", Config{Target: "zlib"}, nil},
		{"source", Config{Source: src}, nil},
		{"both", Config{Target: "zlib", Source: src}, []string{"mutually exclusive"}},
		{"neither", Config{}, []string{"either target or source"}},
		{"missing source", Config{Source: filepath.Join(src, "nope")}, []string{"not a directory"}},
		{"all disabled", Config{Target: "zlib", DisableX86_64: true, DisableARM64: true}, []string{"cannot disable all"}},
		{"below floor", Config{Target: "zlib", OSVersionX86_64: "10.13", OSVersionARM64: "10.15"},
			[]string{"x86_64 is 10.15", "arm64 is 11.0"}},
		{"bad version", Config{Target: "zlib", OSVersionARM64: "eleven"}, []string{"arm64 OS version"}},
		{"negative jobs", Config{Target: "zlib", Jobs: -2}, []string{"jobs must be positive"}},
		{"collected", Config{DisableX86_64: true, DisableARM64: true, Jobs: -1},
			[]string{"either target or source", "cannot disable all", "jobs must be positive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(verr.Problems) != len(tt.want) {
				t.Fatalf("problems = %q, want %d", verr.Problems, len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(verr.Problems[i], w) {
					t.Errorf("problem %d = %q, want it to contain %q", i, verr.Problems[i], w)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	c, err := Load(path, false)
	if err != nil || *c != (Config{}) {
		t.Fatalf("Load(missing) = %+v, %v", c, err)
	}
	if _, err := Load(path, true); err == nil {
		t.Error("Load(missing, required) succeeded")
	}

	data := "target: zlib\njobs: 4\nos_version_arm: \"12.0\"\ndisable_x64: true\nsdk_path_arm: /sdk/MacOSX12.3.sdk\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{Target: "zlib", Jobs: 4, OSVersionARM64: "12.0", DisableX86_64: true, SDKPathARM64: "/sdk/MacOSX12.3.sdk"}
	if *c != want {
		t.Errorf("Load() = %+v, want %+v", *c, want)
	}

	if err := os.WriteFile(path, []byte("jobs: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, true); err == nil {
		t.Error("Load(malformed) succeeded")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	c := &Config{Target: "ninja", Verbose: true, OSVersionX86_64: "10.15"}
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *c {
		t.Errorf("Load(Save()) = %+v, want %+v", *got, *c)
	}
}

func TestOverlay(t *testing.T) {
	var c Config
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse([]string{"--target", "ninja", "-j", "8", "--verbose"}); err != nil {
		t.Fatal(err)
	}
	file := &Config{Target: "zlib", Jobs: 2, OSVersionARM64: "12.0", BuildPath: "/b"}
	if err := c.Overlay(file, fs); err != nil {
		t.Fatalf("Overlay() error = %v", err)
	}
	want := Config{Target: "ninja", Jobs: 8, Verbose: true, OSVersionARM64: "12.0", BuildPath: "/b"}
	if c != want {
		t.Errorf("Overlay() = %+v, want %+v", c, want)
	}
}

func TestPlatformConfig(t *testing.T) {
	root := t.TempDir()
	c := &Config{Root: root, OSVersionARM64: "12.0", DisableX86_64: true}
	l, err := c.Layout()
	if err != nil {
		t.Fatal(err)
	}
	pc := c.Platform(l)
	if pc.RootDir != root || pc.PrefixDir != filepath.Join(root, "prefix") {
		t.Errorf("dirs = %q, %q", pc.RootDir, pc.PrefixDir)
	}
	if pc.OSVersionARM64.String() != "12.0" || !pc.OSVersionX86_64.IsZero() {
		t.Errorf("versions = %q, %q", pc.OSVersionARM64, pc.OSVersionX86_64)
	}
	if !pc.DisableX86_64 {
		t.Error("x86_64 not disabled")
	}
	if c.JobCount() < 1 {
		t.Errorf("JobCount() = %d", c.JobCount())
	}
}
