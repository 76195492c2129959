// Package atomicfile provides the write-temp-then-rename primitive used by
// every authoritative JSON document in the workspace (manifest, registries,
// SSOTs, segment index): a reader never observes a partially written file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Write writes data to path atomically: it writes to a uniquely-named
// temp file in the same directory, then renames it into place. Same-directory
// placement keeps the rename on one filesystem so it is atomic on POSIX and
// Windows alike.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s-%s.tmp", base, uuid.NewString()))

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("atomicfile: write temp for %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomicfile: rename into place %s: %w", path, err)
	}
	return nil
}
