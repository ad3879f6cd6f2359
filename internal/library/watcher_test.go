package library_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/titledock/titledock/internal/library"
	"github.com/titledock/titledock/internal/store"
	"github.com/titledock/titledock/internal/testutil"
)

func TestWatcherServiceStartStop(t *testing.T) {
	app := testutil.SetupTestApp(t)
	watcher := library.NewWatcherService(app)

	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	if err := watcher.Stop(); err != nil {
		t.Fatalf("Failed to stop watcher: %v", err)
	}
}

func TestWatcherServiceFileCreate(t *testing.T) {
	app := testutil.SetupTestApp(t)
	importRoot := app.Config().Import.Path

	watcher := library.NewWatcherService(app)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Give the watcher a moment to attach before generating events.
	time.Sleep(100 * time.Millisecond)

	testutil.WriteUpdateNSP(t, importRoot, "dropped_in.nsp",
		0x0100000000004001, 0x10000, "Dropped In", "1.0.0")

	// Wait out the debounce window plus the sync itself.
	time.Sleep(3 * time.Second)

	st := store.New(app.DB())
	candidate, err := st.GetCandidateByPath(filepath.Join(importRoot, "dropped_in.nsp"))
	if err != nil {
		t.Fatalf("Expected dropped-in package to be resolved: %v", err)
	}
	if candidate.Label != "Dropped In (Update) (1.0.0)" {
		t.Errorf("Unexpected label %q", candidate.Label)
	}
}

func TestWatcherServiceNewDirectoryIsWatched(t *testing.T) {
	app := testutil.SetupTestApp(t)
	importRoot := app.Config().Import.Path

	watcher := library.NewWatcherService(app)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	// Create a directory after the watcher started, then drop a package
	// into it. Both events must make it into the same or a later sync.
	newDir := filepath.Join(importRoot, "incoming")
	if err := os.Mkdir(newDir, 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	testutil.WriteUpdateNSP(t, newDir, "nested.nsp",
		0x0100000000005001, 0x10000, "Nested Title", "1.0.0")

	time.Sleep(3 * time.Second)

	st := store.New(app.DB())
	if _, err := st.GetCandidateByPath(filepath.Join(newDir, "nested.nsp")); err != nil {
		t.Errorf("Expected package in new directory to be resolved: %v", err)
	}
}

func TestWatcherServiceFileRemove(t *testing.T) {
	app := testutil.SetupTestApp(t)
	importRoot := app.Config().Import.Path

	// Seed a resolved candidate before the watcher starts.
	path := testutil.WriteUpdateNSP(t, importRoot, "short_lived.nsp",
		0x0100000000007001, 0x10000, "Short Lived", "1.0.0")
	library.ImportSync(&testutil.MockJobContext{App: app})

	st := store.New(app.DB())
	if _, err := st.GetCandidateByPath(path); err != nil {
		t.Fatalf("Expected seeded candidate: %v", err)
	}

	watcher := library.NewWatcherService(app)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	time.Sleep(3 * time.Second)

	if _, err := st.GetCandidateByPath(path); err == nil {
		t.Error("Expected candidate for removed file to be cleaned up")
	}
}

func TestWatcherServiceIgnoresUnrelatedFiles(t *testing.T) {
	app := testutil.SetupTestApp(t)
	importRoot := app.Config().Import.Path

	watcher := library.NewWatcherService(app)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(importRoot, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	time.Sleep(3 * time.Second)

	count, err := store.New(app.DB()).CountCandidates()
	if err != nil {
		t.Fatalf("CountCandidates failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no candidates for non-package files, got %d", count)
	}
}
