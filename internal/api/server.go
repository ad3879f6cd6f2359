// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/titledock/titledock/internal/core"
	"github.com/titledock/titledock/internal/library"
	"github.com/titledock/titledock/internal/store"
	"github.com/titledock/titledock/internal/websocket"
)

// Server holds the dependencies for our API.
type Server struct {
	app          *core.App
	db           *sql.DB
	store        *store.Store
	badFileStore *store.BadFileStore
	watcher      *library.WatcherService
}

// Store returns the store instance.
func (s *Server) Store() *store.Store {
	return s.store
}

// SetWatcher attaches the file watcher so the rescan endpoint can target
// individual paths. The server works without one; rescans then fall back to
// a full sync job.
func (s *Server) SetWatcher(w *library.WatcherService) {
	s.watcher = w
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{
		app:          app,
		db:           app.DB(),
		store:        store.New(app.DB()),
		badFileStore: store.NewBadFileStore(app.DB()),
	}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)    // Logs requests to the console
	r.Use(middleware.Recoverer) // Recovers from panics
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/users/login", s.handleLogin)
	r.Get("/api/version", s.handleGetVersion)

	r.Group(func(r chi.Router) {
		r.Use(s.AuthMiddleware)

		r.Post("/api/users/logout", s.handleLogout)
		r.Get("/api/users/me", s.handleGetMe)

		r.Route("/api", func(r chi.Router) {
			// Install Candidate Routes
			r.Get("/candidates", s.handleListCandidates)
			r.Get("/candidates/{candidateID}", s.handleGetCandidate)
			r.Post("/candidates/{candidateID}/selection", s.handleSetCandidateSelection)
			r.Post("/candidates/confirm", s.handleConfirmCandidates)

			// Ad-hoc resolution of arbitrary paths, bypassing the database.
			r.Post("/resolve", s.handleResolvePaths)

			// Admin Routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.AdminOnlyMiddleware)

				r.Get("/jobs/status", s.handleGetAdminJobsStatus)
				r.Post("/jobs/run", s.handleRunAdminJob)
				r.Post("/rescan", s.handleRescan)

				// Bad Files Management Routes
				r.Get("/bad-files", s.handleGetBadFiles)
				r.Get("/bad-files/count", s.handleGetBadFilesCount)
				r.Get("/bad-files/download", s.handleDownloadBadFilesCSV)
				r.Delete("/bad-files", s.handleDeleteBadFile)

				// User Management Routes
				r.Get("/users", s.handleAdminListUsers)
				r.Post("/users", s.handleAdminCreateUser)
				r.Put("/users/{userID}", s.handleAdminUpdateUser)
				r.Delete("/users/{userID}", s.handleAdminDeleteUser)
			})
		})
	})

	// WebSocket route for job progress updates.
	r.Get("/ws/admin/progress", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
