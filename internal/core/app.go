package core

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/titledock/titledock/internal/assets"
	"github.com/titledock/titledock/internal/config"
	"github.com/titledock/titledock/internal/db"
	"github.com/titledock/titledock/internal/jobs"
	"github.com/titledock/titledock/internal/library"
	"github.com/titledock/titledock/internal/util"
	"github.com/titledock/titledock/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI. It implements jobs.JobContext.
type App struct {
	config     *config.Config
	db         *sql.DB
	wsHub      *websocket.Hub
	jobManager *jobs.JobManager
	version    string
}

// New sets up and returns a new App instance. It handles loading the
// configuration, initializing the database connection, and running migrations.
func New(version string) (*App, error) {
	// Load configuration from config.yml
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// The import directory must be usable before anything watches or scans it.
	if err := util.ValidateFolderPath(cfg.Import.Path, ""); err != nil {
		return nil, fmt.Errorf("invalid import directory: %w", err)
	}

	// Initialize the database connection
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		// We can't proceed without a valid database schema.
		// Close the DB connection before failing.
		database.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	log.Println("Core application setup complete.")
	return NewApp(cfg, database, websocket.NewHub(), version), nil
}

// NewApp wires an App from already-initialized components. The websocket
// hub is started and the background jobs are registered here so that every
// App, including the ones tests build, carries a working job manager.
func NewApp(cfg *config.Config, database *sql.DB, hub *websocket.Hub, version string) *App {
	app := &App{
		config:  cfg,
		db:      database,
		wsHub:   hub,
		version: version,
	}
	go hub.Run()

	app.jobManager = jobs.NewManager(app)
	library.RegisterJobs(app.jobManager)
	return app
}

func (a *App) Config() *config.Config       { return a.config }
func (a *App) DB() *sql.DB                  { return a.db }
func (a *App) WsHub() *websocket.Hub        { return a.wsHub }
func (a *App) JobManager() *jobs.JobManager { return a.jobManager }
func (a *App) Version() string              { return a.version }

// Close gracefully closes the application's resources, like the DB connection.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
