// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"time"

	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// UploadHandler handles file upload operations
type UploadHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleUploadBinary(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// ParseHandler handles parse session operations
type ParseHandler interface {
	HandleStartParse(c echo.Context) error
	HandleParseStatus(c echo.Context) error
	HandleParseProgressStream(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleParseMessages(c echo.Context) error
	HandleParseMessagesMsgpack(c echo.Context) error
	HandleParseDiagnostics(c echo.Context) error
}

// MonitorHandler handles the monitoring session
type MonitorHandler interface {
	HandleStartMonitor(c echo.Context) error
	HandleStopMonitor(c echo.Context) error
	HandleMonitorStatus(c echo.Context) error
	HandleMonitorMessages(c echo.Context) error
	HandleMonitorStream(c echo.Context) error
}

// InterchangeHandler reads and writes structured message files
type InterchangeHandler interface {
	HandleLoadInterchange(c echo.Context) error
	HandleExportSession(c echo.Context) error
}

// KPIHandler handles boot KPI evaluation
type KPIHandler interface {
	HandleListSuites(c echo.Context) error
	HandleEvaluate(c echo.Context) error
	HandleGetBoard(c echo.Context) error
	HandleResetBoard(c echo.Context) error
	HandleExtract(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for parse session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileIDs []string, sources []loader.Source) (*models.ParseSession, error)
	GetSession(id string) (*models.ParseSession, bool)
	TouchSession(id string) bool
	GetMessages(id string, page, pageSize int) ([]models.UnifiedMessage, int, bool)
	GetDiagnostics(id string) (*models.Diagnostics, bool)
}

// MonitorController defines the monitoring session operations the API uses
type MonitorController interface {
	StartFiles(ctx context.Context, sources []loader.Source) (string, error)
	StartMessages(msgs []models.UnifiedMessage) (string, error)
	StartLive(producer session.Producer, interval time.Duration) (string, error)
	Stop()
	Subscribe(cb session.Subscriber) func()
	Messages(n int) []models.UnifiedMessage
	Status() session.MonitorStatus
}

var (
	_ SessionManager    = (*session.Manager)(nil)
	_ MonitorController = (*session.Monitor)(nil)
)
