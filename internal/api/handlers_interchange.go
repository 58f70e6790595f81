// handlers_interchange.go - Structured message file handlers
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/ecu-analyzer/backend/internal/interchange"
	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// previewSize is how many messages a load response carries.
const previewSize = 20

// InterchangeHandlerImpl implements the InterchangeHandler interface
type InterchangeHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	reader     *loader.Reader
}

// NewInterchangeHandler creates a new interchange handler instance
func NewInterchangeHandler(store storage.Store, sessionMgr SessionManager, reader *loader.Reader) InterchangeHandler {
	return &InterchangeHandlerImpl{
		store:      store,
		sessionMgr: sessionMgr,
		reader:     reader,
	}
}

// HandleLoadInterchange validates a stored structured data file and reports
// how many messages it holds
func (h *InterchangeHandlerImpl) HandleLoadInterchange(c echo.Context) error {
	var req loadInterchangeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	res, err := loadInterchange(c.Request().Context(), h.store, h.reader, req.FileID)
	if err != nil {
		return err
	}

	preview := res.Messages
	if len(preview) > previewSize {
		preview = preview[:previewSize]
	}
	return c.JSON(http.StatusOK, loadInterchangeResponse{
		FileID:   req.FileID,
		Count:    len(res.Messages),
		Dropped:  res.Dropped,
		Messages: preview,
	})
}

// HandleExportSession downloads the messages of a completed parse session
// as a structured data file
func (h *InterchangeHandlerImpl) HandleExportSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	msgs, _, ok := h.sessionMgr.GetMessages(id, 1, 0)
	if !ok {
		return NewNotFoundError("completed session", id)
	}

	var buf bytes.Buffer
	if err := interchange.Encode(&buf, msgs); err != nil {
		return NewInternalError("failed to encode messages", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "session-"+id+".json"))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, buf.Bytes())
}

// loadInterchange reads and decodes one stored structured data file.
func loadInterchange(ctx context.Context, store storage.Store, reader *loader.Reader, fileID string) (*interchange.Result, error) {
	text, _, err := readStoredText(ctx, store, reader, []string{fileID})
	if err != nil {
		return nil, err
	}

	res, err := interchange.Decode([]byte(text))
	if err != nil {
		return nil, NewUnprocessableError("invalid structured data file", err)
	}
	return res, nil
}

// Request/Response types

type loadInterchangeRequest struct {
	FileID string `json:"fileId"`
}

type loadInterchangeResponse struct {
	FileID   string                  `json:"fileId"`
	Count    int                     `json:"count"`
	Dropped  int                     `json:"dropped"`
	Messages []models.UnifiedMessage `json:"messages"`
}
