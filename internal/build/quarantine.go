package build

import (
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const quarantineAttr = "com.apple.quarantine"

// removeQuarantine drops the quarantine attribute from every entry below
// root. Failures are ignored.
func removeQuarantine(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		unix.Lremovexattr(path, quarantineAttr)
		return nil
	})
}
