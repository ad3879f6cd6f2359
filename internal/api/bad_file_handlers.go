package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titledock/titledock/internal/models"
)

func (s *Server) handleGetBadFiles(w http.ResponseWriter, r *http.Request) {
	badFiles, err := s.badFileStore.GetAllBadFiles()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve bad files")
		return
	}
	RespondWithJSON(w, http.StatusOK, badFiles)
}

func (s *Server) handleGetBadFilesCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.badFileStore.CountBadFiles()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to count bad files")
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleDownloadBadFilesCSV(w http.ResponseWriter, r *http.Request) {
	badFiles, err := s.badFileStore.GetAllBadFiles()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve bad files")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=bad_files.csv")

	cw := csv.NewWriter(w)
	cw.Write([]string{"path", "error", "description", "file_size", "detected_at"})
	for _, bf := range badFiles {
		cw.Write([]string{
			bf.Path,
			bf.Error,
			models.BadFileError(bf.Error).String(),
			strconv.FormatInt(bf.FileSize, 10),
			bf.DetectedAt.Format("2006-01-02 15:04:05"),
		})
	}
	cw.Flush()
}

func (s *Server) handleDeleteBadFile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.badFileStore.DeleteBadFile(payload.ID); err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to delete bad file record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRescan schedules a sync. With a path in the payload and an attached
// watcher, only that path's change is queued; otherwise the full import sync
// job runs.
func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Path string `json:"path"`
	}
	// An empty body means a full rescan.
	json.NewDecoder(r.Body).Decode(&payload)

	if payload.Path != "" && s.watcher != nil {
		// A plain prefix check would accept sibling directories like
		// "<import>-evil", so resolve the path relative to the import root.
		rel, err := filepath.Rel(filepath.Clean(s.app.Config().Import.Path), filepath.Clean(payload.Path))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			RespondWithError(w, http.StatusBadRequest, "Path is outside the import directory")
			return
		}
		s.watcher.TriggerSyncForPath(payload.Path)
		RespondWithJSON(w, http.StatusAccepted, map[string]string{
			"message": fmt.Sprintf("Rescan scheduled for %s.", payload.Path),
		})
		return
	}

	if err := s.app.JobManager().RunJob("import-sync", s.app); err != nil {
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Import sync started."})
}
