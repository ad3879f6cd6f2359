// This file contains the main logic for syncing the import directory.
// It walks the directory tree, resolves package files into install
// candidates, and records the files that failed to resolve.

package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/titledock/titledock/internal/jobs"
	"github.com/titledock/titledock/internal/models"
	"github.com/titledock/titledock/internal/resolver"
	"github.com/titledock/titledock/internal/store"
	"github.com/titledock/titledock/internal/switchfs"
)

// RegisterJobs registers the library's background jobs with the manager.
func RegisterJobs(jm *jobs.JobManager) {
	jm.Register("import-sync", "Import Sync", ImportSync)
	jm.Register("detect-bad-files", "Re-check Bad Files", DetectBadFiles)
}

// ImportSync performs a full synchronization between the import directory
// and the database: every package file on disk is re-resolved, candidates
// are upserted, failures are recorded as bad files, and rows for files
// that disappeared are pruned.
func ImportSync(ctx jobs.JobContext) {
	jobId := "import-sync"
	st := store.New(ctx.DB())
	badFileStore := store.NewBadFileStore(ctx.DB())

	sendProgress(ctx, jobId, "Starting import sync...", 0, false)

	// 1. File System Discovery
	sendProgress(ctx, jobId, "Discovering package files...", 10, false)
	rootPath := ctx.Config().Import.Path
	paths, err := DiscoverPackageFiles(rootPath)
	if err != nil {
		log.Printf("Error walking import directory %s: %v", rootPath, err)
		sendProgress(ctx, jobId, "Error scanning import directory", 0, true)
		return
	}

	// 2. Resolution
	res := resolver.New(switchfs.NewDecoder())
	total := len(paths)
	for i, path := range paths {
		progress := 10 + (float64(i)/float64(max(total, 1)))*75
		sendProgress(ctx, jobId, fmt.Sprintf("Resolving %d/%d: %s", i+1, total, filepath.Base(path)), progress, false)
		syncOne(res, st, badFileStore, path)
	}

	// 3. Compressed archives: flag containers with a package file inside
	sendProgress(ctx, jobId, "Checking compressed archives...", 86, false)
	if archivePaths, err := DiscoverCompressedArchives(rootPath); err != nil {
		log.Printf("Error discovering compressed archives: %v", err)
	} else {
		for _, path := range archivePaths {
			checkCompressedArchive(badFileStore, path)
		}
	}

	// 4. Pruning: Remove DB entries for files no longer on disk
	sendProgress(ctx, jobId, "Pruning deleted files...", 90, false)
	if removed, err := st.PruneCandidatesNotIn(paths); err != nil {
		log.Printf("Error pruning candidates: %v", err)
	} else if removed > 0 {
		log.Printf("Pruned %d candidate(s) for deleted files", removed)
	}
	cleanupMissingBadFileRecords(badFileStore, paths)

	sendProgress(ctx, jobId, fmt.Sprintf("Import sync completed. %d file(s) processed.", total), 100, true)
	log.Println("Job finished:", jobId)
}

// DiscoverPackageFiles walks the import directory recursively and returns
// every package file path, sorted for a stable candidate order.
func DiscoverPackageFiles(rootPath string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsSupportedPackage(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// SyncPaths re-resolves just the given file paths, without walking the
// import directory. The watcher uses it so a dropped-in file does not cost
// a full rescan. Paths that vanished lose their candidate and bad file
// rows; compressed containers are re-listed; anything else is resolved as
// the full sync would.
func SyncPaths(ctx jobs.JobContext, paths []string) {
	st := store.New(ctx.DB())
	badFileStore := store.NewBadFileStore(ctx.DB())
	res := resolver.New(switchfs.NewDecoder())

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			st.DeleteCandidateByPath(path)
			badFileStore.DeleteBadFileByPath(path)
			continue
		}
		switch {
		case IsCompressedArchiveName(path):
			checkCompressedArchive(badFileStore, path)
		case IsSupportedPackage(path):
			syncOne(res, st, badFileStore, path)
		}
	}
}

// DiscoverCompressedArchives walks the import directory and returns every
// compressed container file, sorted.
func DiscoverCompressedArchives(rootPath string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsCompressedArchiveName(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// checkCompressedArchive lists a compressed container and flags it when a
// package file is trapped inside; the user has to extract it before the
// contents can resolve. Containers without package entries are left alone.
func checkCompressedArchive(badFileStore *store.BadFileStore, path string) {
	if !ArchiveContainsPackage(path) {
		badFileStore.DeleteBadFileByPath(path)
		return
	}
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	if err := badFileStore.CreateBadFile(path, string(models.ErrorCompressedPackage), size); err != nil {
		log.Printf("Failed to record compressed archive %s: %v", path, err)
	}
}

// syncOne resolves a single package file and updates the candidate and bad
// file tables to match the outcome.
func syncOne(res *resolver.Resolver, st *store.Store, badFileStore *store.BadFileStore, path string) {
	resolution, err := res.Resolve(path)
	if err != nil {
		log.Printf("Skipping unresolvable file %s: %v", path, err)
		recordBadFile(badFileStore, path, err)
		// A file that stopped resolving must not linger in the candidate list.
		st.DeleteCandidateByPath(path)
		return
	}

	candidate := resolution.Candidate
	if len(resolution.IconData) > 0 {
		if icon, err := GenerateIcon(resolution.IconData); err == nil {
			candidate.Icon = icon
		}
	}

	if _, err := st.UpsertCandidate(&candidate); err != nil {
		log.Printf("Failed to store candidate for %s: %v", path, err)
		return
	}
	// The file resolves now; clear any stale failure record.
	badFileStore.DeleteBadFileByPath(path)
}

// recordBadFile categorizes a resolve failure and stores it.
func recordBadFile(badFileStore *store.BadFileStore, path string, resolveErr error) {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	if err := badFileStore.CreateBadFile(path, categorizeError(path, resolveErr), size); err != nil {
		log.Printf("Failed to record bad file %s: %v", path, err)
	}
}

// categorizeError maps a resolve failure to a bad file category.
func categorizeError(path string, err error) string {
	switch {
	case errors.Is(err, resolver.ErrUnsupportedCategory):
		return string(models.ErrorUnsupportedCategory)
	case errors.Is(err, resolver.ErrMissingMetadata):
		return string(models.ErrorMissingMetadata)
	case errors.Is(err, resolver.ErrMalformedPartition):
		// A compressed title looks like a malformed package until the
		// container is sniffed; give the user the actionable message.
		if IsCompressedArchive(path) {
			return string(models.ErrorCompressedPackage)
		}
		return string(models.ErrorMalformedPartition)
	case errors.Is(err, resolver.ErrUnsupportedFormat):
		return string(models.ErrorUnsupportedFormat)
	default:
		return string(models.ErrorIOError)
	}
}

// cleanupMissingBadFileRecords removes bad file records for files that no
// longer exist on disk.
func cleanupMissingBadFileRecords(badFileStore *store.BadFileStore, paths []string) {
	onDisk := make(map[string]bool, len(paths))
	for _, p := range paths {
		onDisk[p] = true
	}

	allBadFiles, err := badFileStore.GetAllBadFiles()
	if err != nil {
		log.Printf("Error getting bad files for cleanup: %v", err)
		return
	}
	for _, badFile := range allBadFiles {
		if !onDisk[badFile.Path] {
			if _, err := os.Stat(badFile.Path); os.IsNotExist(err) {
				log.Printf("Removing bad file record for deleted file: %s", badFile.Path)
				badFileStore.DeleteBadFile(badFile.ID)
			}
		}
	}
}
