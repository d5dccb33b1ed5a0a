package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Build directory layout:
//
//	<build>/
//	  .unibuild.json     # record of the last successful build
//	  build_<arch>/      # per-architecture build trees
//	  install_<arch>/    # per-architecture install trees, merged afterwards
const recordFile = ".unibuild.json"

// Record describes the last successful build of a target.
type Record struct {
	Target     string    `json:"target"`
	Version    string    `json:"version,omitempty"`
	Archs      []string  `json:"archs,omitempty"`
	InstallDir string    `json:"install_dir"`
	Xcode      bool      `json:"xcode,omitempty"`
	BuildTime  time.Time `json:"build_time"`
}

// LoadRecord reads the build record kept in buildDir.
func LoadRecord(buildDir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(buildDir, recordFile))
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRecord writes r to buildDir.
func SaveRecord(buildDir string, r *Record) error {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(buildDir, recordFile), data, 0o644)
}
