package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFolderPath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name       string
		folderPath string
		wantErr    bool
	}{
		{"existing directory", base, false},
		{"creatable directory", filepath.Join(base, "staging"), false},
		{"nested creatable directory", filepath.Join(base, "a", "b", "c"), false},
		{"relative path under the base", "imports", false},
		{"empty path", "", true},
		{"directory traversal", "../outside", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFolderPath(tt.folderPath, base)
			if tt.wantErr && err == nil {
				t.Error("Expected an error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}

	t.Run("path is a file", func(t *testing.T) {
		path := filepath.Join(base, "not_a_dir")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if err := ValidateFolderPath(path, base); err == nil {
			t.Error("Expected an error for a file path")
		}
	})
}
