package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/goplus/unibuild/internal/xexec"
)

// PatchTool is the patch executable.
const PatchTool = "/usr/bin/patch"

// ApplyPatch applies the unified diff patchFile to the tree in dir. A
// patch that is already applied is accepted silently.
func (f *Fetcher) ApplyPatch(ctx context.Context, dir, patchFile string) error {
	args := []string{"--strip=1", "--input=" + patchFile}
	dryRun := append(append([]string(nil), args...), "--dry-run", "--force")

	err := f.quiet(ctx, dir, dryRun)
	if xexec.ExitCode(err) == 1 {
		// does not apply forward; check whether it is already in
		reverse := append(dryRun, "--reverse")
		if f.quiet(ctx, dir, reverse) == nil {
			f.debugf("patch %s is already applied", patchFile)
			return nil
		}
		return fmt.Errorf("patch %s could not be applied", patchFile)
	}

	cmd := xexec.Command(PatchTool, args...)
	cmd.Dir = dir
	cmd.Env = f.Env
	if err := f.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("apply %s: %w", patchFile, err)
	}
	return nil
}

func (f *Fetcher) quiet(ctx context.Context, dir string, args []string) error {
	cmd := xexec.Command(PatchTool, args...)
	cmd.Dir = dir
	cmd.Env = f.Env
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return f.Runner.Run(ctx, cmd)
}
