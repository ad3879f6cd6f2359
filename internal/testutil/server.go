// A shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"database/sql"
	"testing"

	"github.com/titledock/titledock/internal/api"
	"github.com/titledock/titledock/internal/config"
	"github.com/titledock/titledock/internal/core"
	"github.com/titledock/titledock/internal/websocket"
)

// SetupTestApp builds a core.App backed by an in-memory database and a
// temporary import directory.
func SetupTestApp(t *testing.T) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	cfg := &config.Config{}
	cfg.Import.Path = t.TempDir()
	return core.NewApp(cfg, db, websocket.NewHub(), "test")
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *sql.DB) {
	t.Helper()
	app := SetupTestApp(t)
	server := api.NewServer(app)
	return server, app.DB()
}
