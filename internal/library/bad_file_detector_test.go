package library_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/titledock/titledock/internal/library"
	"github.com/titledock/titledock/internal/store"
	"github.com/titledock/titledock/internal/testutil"
)

func TestDetectBadFiles(t *testing.T) {
	app := testutil.SetupTestApp(t)
	ctx := &testutil.MockJobContext{App: app}
	importRoot := app.Config().Import.Path
	st := store.New(app.DB())
	badFileStore := store.NewBadFileStore(app.DB())

	stillBad := filepath.Join(importRoot, "still_bad.nsp")
	if err := os.WriteFile(stillBad, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	fixed := filepath.Join(importRoot, "fixed.nsp")
	if err := os.WriteFile(fixed, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	gone := filepath.Join(importRoot, "gone.nsp")

	for _, p := range []string{stillBad, fixed, gone} {
		if err := badFileStore.CreateBadFile(p, "malformed_partition", 7); err != nil {
			t.Fatalf("Failed to seed bad file: %v", err)
		}
	}

	// Fix one of the files before the re-check runs.
	testutil.WriteUpdateNSP(t, importRoot, "fixed.nsp",
		0x0100000000007001, 0x10000, "Fixed Title", "1.0.1")

	library.DetectBadFiles(ctx)

	badFiles, err := badFileStore.GetAllBadFiles()
	if err != nil {
		t.Fatalf("GetAllBadFiles failed: %v", err)
	}
	if len(badFiles) != 1 {
		t.Fatalf("Expected 1 remaining bad file, got %d", len(badFiles))
	}
	if badFiles[0].Path != stillBad {
		t.Errorf("Expected %s to remain flagged, got %s", stillBad, badFiles[0].Path)
	}

	if _, err := st.GetCandidateByPath(fixed); err != nil {
		t.Errorf("Expected fixed file to become a candidate: %v", err)
	}
	if _, err := st.GetCandidateByPath(stillBad); err == nil {
		t.Error("Still-bad file must not become a candidate")
	}
}
