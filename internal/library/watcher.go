// This file implements a file system watcher for the import directory.
// It uses OS-level file system events to detect dropped-in packages and
// trigger an import sync without waiting for the scheduled job.

package library

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/titledock/titledock/internal/jobs"
)

// WatcherService watches the import directory for file system changes and
// triggers an import sync when package files are added, modified, or removed.
type WatcherService struct {
	ctx           jobs.JobContext
	watcher       *fsnotify.Watcher
	changedPaths  map[string]bool
	mu            sync.RWMutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
}

// NewWatcherService creates a new file system watcher service.
func NewWatcherService(ctx jobs.JobContext) *WatcherService {
	return &WatcherService{
		ctx:           ctx,
		changedPaths:  make(map[string]bool),
		debounceDelay: 2 * time.Second, // Wait 2 seconds after last change before syncing
		stopChan:      make(chan struct{}),
	}
}

// Start begins watching the import directory for changes.
func (w *WatcherService) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	importPath := w.ctx.Config().Import.Path

	// Watch the import root directory recursively
	err = filepath.WalkDir(importPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Only watch directories (files are watched via their parent directory)
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})

	if err != nil {
		watcher.Close()
		return err
	}

	log.Printf("File watcher started for import directory: %s", importPath)

	// Start the event processing goroutine
	go w.processEvents()

	return nil
}

// Stop stops the file watcher service.
func (w *WatcherService) Stop() error {
	close(w.stopChan)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

// processEvents processes file system events and triggers import syncs.
func (w *WatcherService) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

// handleEvent processes a single file system event.
func (w *WatcherService) handleEvent(event fsnotify.Event) {
	// Ignore Chmod events (these are often triggered by opening folders,
	// reading files, etc.) to prevent false triggers when browsing.
	if event.Op == fsnotify.Chmod {
		return
	}

	hasRelevantOp := (event.Op&fsnotify.Create == fsnotify.Create) ||
		(event.Op&fsnotify.Write == fsnotify.Write) ||
		(event.Op&fsnotify.Remove == fsnotify.Remove)

	if !hasRelevantOp {
		return
	}

	// Check if it's a directory by stat'ing it
	info, err := os.Stat(event.Name)
	isDir := err == nil && info.IsDir()

	// Handle directory creation: add to watch list and schedule a full
	// sync, since the directory may already hold files we never saw events
	// for.
	if event.Op&fsnotify.Create == fsnotify.Create && isDir {
		w.watcher.Add(event.Name)
		w.markChanged(event.Name)
		return
	}

	// For file events, only trigger on package and archive files. Removed
	// files can't be stat'ed, so they pass through on the name check alone.
	name := filepath.Base(event.Name)
	if !isDir && (IsSupportedPackage(name) || IsCompressedArchiveName(name)) {
		w.markChanged(event.Name)
	}
}

// markChanged records a changed path and resets the debounce timer.
func (w *WatcherService) markChanged(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.changedPaths[path] = true

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.triggerSync)
}

// TriggerSyncForPath manually schedules a sync for a specific path. This is
// used by the API's rescan endpoint.
func (w *WatcherService) TriggerSyncForPath(path string) {
	w.markChanged(path)
}

// triggerSync runs once the debounce window closes. Changed files are
// re-resolved individually; a changed directory forces the full import
// sync job instead.
func (w *WatcherService) triggerSync() {
	w.mu.Lock()
	if len(w.changedPaths) == 0 {
		w.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.changedPaths))
	for path := range w.changedPaths {
		changed = append(changed, path)
	}
	w.changedPaths = make(map[string]bool)
	w.mu.Unlock()
	sort.Strings(changed)

	for _, path := range changed {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			log.Printf("File watcher detected a changed directory, triggering full import sync")
			if err := w.ctx.JobManager().RunJob("import-sync", w.ctx); err != nil {
				log.Printf("Import sync could not start: %v", err)
			}
			return
		}
	}

	log.Printf("File watcher re-resolving %d changed path(s)", len(changed))
	SyncPaths(w.ctx, changed)
}
