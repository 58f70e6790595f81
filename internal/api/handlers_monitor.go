// handlers_monitor.go - Monitoring session handlers
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/session"
	"github.com/ecu-analyzer/backend/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// MonitorHandlerImpl implements the MonitorHandler interface
type MonitorHandlerImpl struct {
	store        storage.Store
	sessionMgr   SessionManager
	monitor      MonitorController
	reader       *loader.Reader
	liveInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewMonitorHandler creates a new monitor handler instance
func NewMonitorHandler(store storage.Store, sessionMgr SessionManager, monitor MonitorController, reader *loader.Reader, liveInterval time.Duration) MonitorHandler {
	if liveInterval <= 0 {
		liveInterval = session.DefaultLiveInterval
	}
	return &MonitorHandlerImpl{
		store:        store,
		sessionMgr:   sessionMgr,
		monitor:      monitor,
		reader:       reader,
		liveInterval: liveInterval,
		upgrader:     newUpgrader(),
	}
}

// HandleStartMonitor starts a monitoring session, replacing any active one.
//
// Exactly one input is used, in this order of precedence: sessionId (the
// messages of a completed parse session), interchangeFileId (a stored
// structured data file) or fileIds (raw logs, converted by the session).
// With live set, recorded messages are looped through a live producer.
func (h *MonitorHandlerImpl) HandleStartMonitor(c echo.Context) error {
	var req startMonitorRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	var (
		id  string
		err error
	)
	switch {
	case req.SessionID != "":
		msgs, _, ok := h.sessionMgr.GetMessages(req.SessionID, 1, 0)
		if !ok {
			return NewNotFoundError("completed session", req.SessionID)
		}
		id, err = h.startRecorded(req, msgs)

	case req.InterchangeFileID != "":
		res, lerr := loadInterchange(c.Request().Context(), h.store, h.reader, req.InterchangeFileID)
		if lerr != nil {
			return lerr
		}
		id, err = h.startRecorded(req, res.Messages)

	case len(req.FileIDs) > 0:
		if req.Live {
			return NewBadRequestError("live mode needs sessionId or interchangeFileId", nil)
		}
		sources, rerr := resolveSources(h.store, req.FileIDs)
		if rerr != nil {
			return rerr
		}
		// The session outlives this request.
		id, err = h.monitor.StartFiles(context.Background(), sources)

	default:
		return NewValidationError("fileIds, sessionId or interchangeFileId")
	}
	if err != nil {
		return FromError("failed to start monitoring", err)
	}

	status := h.monitor.Status()
	if status.SessionID != id {
		status = session.MonitorStatus{SessionID: id}
	}
	return c.JSON(http.StatusAccepted, status)
}

func (h *MonitorHandlerImpl) startRecorded(req startMonitorRequest, msgs []models.UnifiedMessage) (string, error) {
	if !req.Live {
		return h.monitor.StartMessages(msgs)
	}
	if len(msgs) == 0 {
		return "", session.ErrNoMessages
	}

	interval := h.liveInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	return h.monitor.StartLive(session.NewLoopProducer(msgs, req.Chunk), interval)
}

// HandleStopMonitor stops the active session
func (h *MonitorHandlerImpl) HandleStopMonitor(c echo.Context) error {
	h.monitor.Stop()
	return c.NoContent(http.StatusNoContent)
}

// HandleMonitorStatus describes the active session
func (h *MonitorHandlerImpl) HandleMonitorStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.Status())
}

// HandleMonitorMessages returns the newest buffered messages first
func (h *MonitorHandlerImpl) HandleMonitorMessages(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	msgs := h.monitor.Messages(limit)
	if msgs == nil {
		msgs = []models.UnifiedMessage{}
	}
	return c.JSON(http.StatusOK, monitorMessagesResponse{
		Messages: msgs,
		Count:    len(msgs),
	})
}

// Request/Response types

type startMonitorRequest struct {
	FileIDs           []string `json:"fileIds"`
	SessionID         string   `json:"sessionId"`
	InterchangeFileID string   `json:"interchangeFileId"`
	Live              bool     `json:"live"`
	Chunk             int      `json:"chunk"`
	IntervalMs        int      `json:"intervalMs"`
}

type monitorMessagesResponse struct {
	Messages []models.UnifiedMessage `json:"messages"`
	Count    int                     `json:"count"`
}
