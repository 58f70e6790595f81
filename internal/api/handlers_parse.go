// handlers_parse.go - Parse session operation handlers
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/storage"
	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000

	// MIMEApplicationMsgpack is the content type of msgpack responses.
	MIMEApplicationMsgpack = "application/x-msgpack"
)

// ParseHandlerImpl implements the ParseHandler interface
type ParseHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
}

// NewParseHandler creates a new parse handler instance
func NewParseHandler(store storage.Store, sessionMgr SessionManager) ParseHandler {
	return &ParseHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
	}
}

// HandleStartParse starts a conversion session for one or more files
func (h *ParseHandlerImpl) HandleStartParse(c echo.Context) error {
	var req startParseRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	fileIDs := req.normalizeFileIDs()
	if len(fileIDs) == 0 {
		return NewValidationError("fileId or fileIds")
	}

	sources, err := resolveSources(h.store, fileIDs)
	if err != nil {
		return err
	}

	sess, err := h.sessionMgr.StartSession(fileIDs, sources)
	if err != nil {
		return FromError("failed to start session", err)
	}

	for _, id := range fileIDs {
		h.store.SetStatus(id, models.FileStatusParsing)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleParseStatus returns the current status of a parsing session
func (h *ParseHandlerImpl) HandleParseStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)
	h.syncFileStatus(sess)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *ParseHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleParseProgressStream streams parsing progress via SSE
func (h *ParseHandlerImpl) HandleParseProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)
	if sessionDone(sess) {
		h.syncFileStatus(sess)
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.NewTimer(5 * time.Minute)
	defer timeout.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}

			sendSSEData(c, sess)

			if sessionDone(sess) {
				h.syncFileStatus(sess)
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil
		}
	}
}

// HandleParseMessages returns one page of converted messages in stream order
func (h *ParseHandlerImpl) HandleParseMessages(c echo.Context) error {
	resp, err := h.messagesPage(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleParseMessagesMsgpack returns the same page encoded as MessagePack
func (h *ParseHandlerImpl) HandleParseMessagesMsgpack(c echo.Context) error {
	resp, err := h.messagesPage(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode messages", err)
	}
	return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
}

// HandleParseDiagnostics returns the per-kind drop counts of a session
func (h *ParseHandlerImpl) HandleParseDiagnostics(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	diag, ok := h.sessionMgr.GetDiagnostics(id)
	if !ok {
		return NewNotFoundError("session diagnostics", id)
	}

	return c.JSON(http.StatusOK, diag)
}

func (h *ParseHandlerImpl) messagesPage(c echo.Context) (*messagesResponse, error) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	if sess.Status != models.SessionStatusComplete {
		return nil, NewConflictError(fmt.Sprintf("session %s is %s", id, sess.Status))
	}

	page, pageSize := parsePagination(c)
	msgs, total, ok := h.sessionMgr.GetMessages(id, page, pageSize)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	h.sessionMgr.TouchSession(id)

	if msgs == nil {
		msgs = []models.UnifiedMessage{}
	}
	return &messagesResponse{
		Messages: msgs,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// syncFileStatus mirrors a finished session onto its input files.
func (h *ParseHandlerImpl) syncFileStatus(sess *models.ParseSession) {
	var status models.FileStatus
	switch sess.Status {
	case models.SessionStatusComplete:
		status = models.FileStatusParsed
	case models.SessionStatusError:
		status = models.FileStatusError
	default:
		return
	}
	for _, id := range sess.FileIDs {
		h.store.SetStatus(id, status)
	}
}

// Request/Response types

type startParseRequest struct {
	FileID  string   `json:"fileId"`
	FileIDs []string `json:"fileIds"`
}

func (r *startParseRequest) normalizeFileIDs() []string {
	if len(r.FileIDs) > 0 {
		return r.FileIDs
	}
	if r.FileID != "" {
		return []string{r.FileID}
	}
	return nil
}

type messagesResponse struct {
	Messages []models.UnifiedMessage `json:"messages" msgpack:"messages"`
	Page     int                     `json:"page" msgpack:"page"`
	PageSize int                     `json:"pageSize" msgpack:"pageSize"`
	Total    int                     `json:"total" msgpack:"total"`
}

// Helper functions

func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func sessionDone(sess *models.ParseSession) bool {
	return sess.Status == models.SessionStatusComplete ||
		sess.Status == models.SessionStatusError
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
