// This file contains shared test utilities for job context mocking.

package testutil

import (
	"database/sql"

	"github.com/titledock/titledock/internal/config"
	"github.com/titledock/titledock/internal/core"
	"github.com/titledock/titledock/internal/jobs"
	"github.com/titledock/titledock/internal/websocket"
)

// MockJobContext implements jobs.JobContext for testing
type MockJobContext struct {
	App *core.App
}

func (m *MockJobContext) DB() *sql.DB                  { return m.App.DB() }
func (m *MockJobContext) Config() *config.Config       { return m.App.Config() }
func (m *MockJobContext) WsHub() *websocket.Hub        { return m.App.WsHub() }
func (m *MockJobContext) JobManager() *jobs.JobManager { return m.App.JobManager() }
