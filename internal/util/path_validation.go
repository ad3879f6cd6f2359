package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateFolderPath checks that a folder is usable as a storage directory:
// it exists (or can be created) and is writable. Relative paths are anchored
// at basePath and must not climb out of it.
func ValidateFolderPath(folderPath string, basePath string) error {
	if folderPath == "" {
		return fmt.Errorf("folder path cannot be empty")
	}
	if strings.Contains(folderPath, "..") {
		return fmt.Errorf("folder path contains directory traversal")
	}

	full := filepath.Clean(folderPath)
	if !filepath.IsAbs(full) {
		full = filepath.Join(basePath, full)
	}

	info, err := os.Stat(full)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", full)
		}
		return checkWritable(full)
	case os.IsNotExist(err):
		// Prove the directory can be created, then leave no trace.
		if err := os.MkdirAll(full, 0o755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
		os.RemoveAll(full)
		return nil
	default:
		return fmt.Errorf("cannot access path: %w", err)
	}
}

// checkWritable creates and removes a marker file in dir.
func checkWritable(dir string) error {
	marker := filepath.Join(dir, ".titledock_write_check")
	f, err := os.Create(marker)
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	f.Close()
	os.Remove(marker)
	return nil
}
