package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/titledock/titledock/internal/resolver"
	"github.com/titledock/titledock/internal/switchfs"
)

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	var err error
	var candidates interface{}

	// ?selected=true narrows the list to what would actually be installed.
	if r.URL.Query().Get("selected") == "true" {
		candidates, err = s.store.GetSelectedCandidates()
	} else {
		candidates, err = s.store.GetAllCandidates()
	}
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve candidates")
		return
	}
	RespondWithJSON(w, http.StatusOK, candidates)
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "candidateID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid candidate ID")
		return
	}

	candidate, err := s.store.GetCandidateByID(id)
	if err != nil {
		RespondWithError(w, http.StatusNotFound, "Candidate not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, candidate)
}

func (s *Server) handleSetCandidateSelection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "candidateID"), 10, 64)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid candidate ID")
		return
	}

	var payload struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := s.store.SetCandidateSelection(id, payload.Selected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			RespondWithError(w, http.StatusNotFound, "Candidate not found")
			return
		}
		RespondWithError(w, http.StatusInternalServerError, "Failed to update candidate")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleConfirmCandidates returns the ordered list of file paths for the
// currently selected candidates. This is the hand-off point to whatever
// performs the actual installation.
func (s *Server) handleConfirmCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.store.GetSelectedCandidates()
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to retrieve candidates")
		return
	}

	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		paths = append(paths, c.Path)
	}
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(paths),
		"paths": paths,
	})
}

// handleResolvePaths resolves an arbitrary list of file paths without
// touching the database. Paths that fail to resolve are omitted from the
// response, matching the batch resolver's contract.
func (s *Server) handleResolvePaths(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(payload.Paths) == 0 {
		RespondWithError(w, http.StatusBadRequest, "No paths provided")
		return
	}

	res := resolver.New(switchfs.NewDecoder())
	RespondWithJSON(w, http.StatusOK, res.ResolveCandidates(payload.Paths))
}
