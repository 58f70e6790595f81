// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"time"

	"github.com/ecu-analyzer/backend/internal/kpi"
	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/logging"
	"github.com/ecu-analyzer/backend/internal/metrics"
	"github.com/ecu-analyzer/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store        storage.Store
	SessionMgr   SessionManager
	Monitor      MonitorController
	Board        *kpi.Board
	Reader       loader.Options
	LiveInterval time.Duration
	Version      string
}

// Handlers holds all handler instances
type Handlers struct {
	Health      HealthHandler
	Upload      UploadHandler
	Parse       ParseHandler
	Monitor     MonitorHandler
	Interchange InterchangeHandler
	KPI         KPIHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	reader := loader.NewReader(deps.Reader)
	return &Handlers{
		Health:      NewHealthHandler(deps.Version),
		Upload:      NewUploadHandler(deps.Store),
		Parse:       NewParseHandler(deps.Store, deps.SessionMgr),
		Monitor:     NewMonitorHandler(deps.Store, deps.SessionMgr, deps.Monitor, reader, deps.LiveInterval),
		Interchange: NewInterchangeHandler(deps.Store, deps.SessionMgr, reader),
		KPI:         NewKPIHandler(deps.Store, deps.Board, reader),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.Health.HandleHealth)
	e.GET("/api/health", handlers.Health.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	// File upload routes
	uploadGroup := e.Group("/api/files")
	uploadGroup.POST("/upload", handlers.Upload.HandleUploadFile)
	uploadGroup.POST("/upload/binary", handlers.Upload.HandleUploadBinary)
	uploadGroup.GET("/recent", handlers.Upload.HandleGetRecentFiles)
	uploadGroup.GET("/:id", handlers.Upload.HandleGetFile)
	uploadGroup.DELETE("/:id", handlers.Upload.HandleDeleteFile)
	uploadGroup.PUT("/:id", handlers.Upload.HandleRenameFile)

	// Parse session routes
	parseGroup := e.Group("/api/parse")
	parseGroup.POST("", handlers.Parse.HandleStartParse)
	parseGroup.GET("/:sessionId/status", handlers.Parse.HandleParseStatus)
	parseGroup.POST("/:sessionId/keepalive", handlers.Parse.HandleSessionKeepAlive)
	parseGroup.GET("/:sessionId/progress", handlers.Parse.HandleParseProgressStream)
	parseGroup.GET("/:sessionId/messages", handlers.Parse.HandleParseMessages)
	parseGroup.GET("/:sessionId/messages/msgpack", handlers.Parse.HandleParseMessagesMsgpack)
	parseGroup.GET("/:sessionId/diagnostics", handlers.Parse.HandleParseDiagnostics)
	parseGroup.GET("/:sessionId/export", handlers.Interchange.HandleExportSession)

	// Structured message files
	e.POST("/api/interchange/load", handlers.Interchange.HandleLoadInterchange)

	// Monitoring session routes
	monitorGroup := e.Group("/api/monitor")
	monitorGroup.POST("/start", handlers.Monitor.HandleStartMonitor)
	monitorGroup.POST("/stop", handlers.Monitor.HandleStopMonitor)
	monitorGroup.GET("/status", handlers.Monitor.HandleMonitorStatus)
	monitorGroup.GET("/messages", handlers.Monitor.HandleMonitorMessages)

	// KPI routes
	kpiGroup := e.Group("/api/kpi")
	kpiGroup.GET("/suites", handlers.KPI.HandleListSuites)
	kpiGroup.POST("/evaluate", handlers.KPI.HandleEvaluate)
	kpiGroup.GET("/board", handlers.KPI.HandleGetBoard)
	kpiGroup.DELETE("/board", handlers.KPI.HandleResetBoard)
	kpiGroup.POST("/extract", handlers.KPI.HandleExtract)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/monitor", handlers.Monitor.HandleMonitorStream)
}

// MiddlewareConfig selects the optional middleware.
type MiddlewareConfig struct {
	EnableCORS     bool
	AllowOrigins   []string
	BodyLimit      string
	RequestLogging bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		}))
	}

	if cfg.RequestLogging {
		log := logging.WithComponent("http")
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogURI:     true,
			LogStatus:  true,
			LogMethod:  true,
			LogLatency: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				log.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
				return nil
			},
		}))
	}
}
