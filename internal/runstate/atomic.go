package runstate

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a file atomically by writing to a temporary
// file first and then renaming it to the target path, creating the parent
// directory if needed. This prevents corruption from crashes mid-write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
