// This file implements the bad file re-check job. It revisits every
// recorded bad file, re-resolves it, and clears records for files that
// have been fixed or deleted since they were flagged.

package library

import (
	"fmt"
	"log"
	"os"

	"github.com/titledock/titledock/internal/jobs"
	"github.com/titledock/titledock/internal/resolver"
	"github.com/titledock/titledock/internal/store"
	"github.com/titledock/titledock/internal/switchfs"
)

// DetectBadFiles re-examines all recorded bad files. Files that resolve now
// are promoted to candidates, files that vanished lose their record, and
// files that still fail get a refreshed error category.
func DetectBadFiles(ctx jobs.JobContext) {
	jobId := "detect-bad-files"
	st := store.New(ctx.DB())
	badFileStore := store.NewBadFileStore(ctx.DB())

	sendProgress(ctx, jobId, "Re-checking bad files...", 0, false)

	badFiles, err := badFileStore.GetAllBadFiles()
	if err != nil {
		log.Printf("Error getting bad files: %v", err)
		sendProgress(ctx, jobId, "Error loading bad file records", 0, true)
		return
	}

	res := resolver.New(switchfs.NewDecoder())
	total := len(badFiles)
	fixed := 0
	for i, badFile := range badFiles {
		progress := (float64(i) / float64(max(total, 1))) * 95
		sendProgress(ctx, jobId, fmt.Sprintf("Re-checking %d/%d: %s", i+1, total, badFile.FileName), progress, false)

		if _, err := os.Stat(badFile.Path); os.IsNotExist(err) {
			badFileStore.DeleteBadFile(badFile.ID)
			continue
		}

		syncOne(res, st, badFileStore, badFile.Path)
		if _, err := st.GetCandidateByPath(badFile.Path); err == nil {
			fixed++
		}
	}

	sendProgress(ctx, jobId, fmt.Sprintf("Re-check completed. %d of %d file(s) resolve now.", fixed, total), 100, true)
	log.Println("Job finished:", jobId)
}
