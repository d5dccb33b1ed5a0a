// Package sign applies ad-hoc code signatures.
package sign

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/goplus/unibuild/internal/xexec"
)

// Signer runs codesign with the ad-hoc identity.
type Signer struct {
	Runner xexec.Runner
	Env    []string
	// Tool overrides the codesign executable.
	Tool string
}

func (s *Signer) tool() string {
	if s.Tool != "" {
		return s.Tool
	}
	return "codesign"
}

// Sign signs the single file at path.
func (s *Signer) Sign(ctx context.Context, path string) error {
	cmd := xexec.Command(s.tool(), "--sign", "-", path)
	cmd.Env = s.Env
	if err := s.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("sign %s: %w", path, err)
	}
	return nil
}

// SignOutputs signs each output, relative to installDir, recursively and
// replacing existing signatures.
func (s *Signer) SignOutputs(ctx context.Context, installDir string, outputs []string) error {
	for _, out := range outputs {
		cmd := xexec.Command(s.tool(), "--sign", "-", "--deep", "--force", out)
		cmd.Dir = installDir
		cmd.Env = s.Env
		if err := s.Runner.Run(ctx, cmd); err != nil {
			return fmt.Errorf("sign %s: %w", filepath.Join(installDir, out), err)
		}
	}
	return nil
}
