// handlers_kpi.go - Boot KPI handlers
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ecu-analyzer/backend/internal/kpi"
	"github.com/ecu-analyzer/backend/internal/loader"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// KPIHandlerImpl implements the KPIHandler interface
type KPIHandlerImpl struct {
	store  storage.Store
	board  *kpi.Board
	reader *loader.Reader
	now    func() time.Time
}

// NewKPIHandler creates a new KPI handler instance
func NewKPIHandler(store storage.Store, board *kpi.Board, reader *loader.Reader) KPIHandler {
	return &KPIHandlerImpl{
		store:  store,
		board:  board,
		reader: reader,
		now:    time.Now,
	}
}

// HandleListSuites returns every configured suite with its definitions
func (h *KPIHandlerImpl) HandleListSuites(c echo.Context) error {
	return c.JSON(http.StatusOK, h.board.Suites().All())
}

// HandleEvaluate checks stored logs against a suite or ad-hoc definitions.
// Suite results are kept on the board; ad-hoc results are only returned.
func (h *KPIHandlerImpl) HandleEvaluate(c echo.Context) error {
	var req evaluateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	text, fileErrs, err := readStoredText(c.Request().Context(), h.store, h.reader, req.FileIDs)
	if err != nil {
		return err
	}

	resp := evaluateResponse{FileErrors: fileErrorReasons(fileErrs)}
	if len(req.Definitions) > 0 {
		resp.Statuses = kpi.Check(text, req.Definitions, h.now())
		return c.JSON(http.StatusOK, resp)
	}

	mode, err := kpi.ParseMode(req.modeOrDefault())
	if err != nil {
		return FromError("invalid mode", err)
	}
	statuses, err := h.board.Evaluate(mode, req.Suite, text)
	if err != nil {
		return FromError("failed to evaluate suite", err)
	}
	resp.Mode = string(mode)
	resp.Suite = req.Suite
	resp.Statuses = statuses
	return c.JSON(http.StatusOK, resp)
}

// HandleGetBoard returns the board for a mode. Without a suite parameter
// every suite is returned, keyed by name.
func (h *KPIHandlerImpl) HandleGetBoard(c echo.Context) error {
	mode, err := kpi.ParseMode(modeParam(c))
	if err != nil {
		return FromError("invalid mode", err)
	}

	if suite := c.QueryParam("suite"); suite != "" {
		statuses, err := h.board.Statuses(mode, suite)
		if err != nil {
			return FromError("failed to read board", err)
		}
		return c.JSON(http.StatusOK, statuses)
	}

	out := make(map[string][]models.KPIStatus)
	for _, name := range h.board.Suites().Names() {
		statuses, err := h.board.Statuses(mode, name)
		if err != nil {
			return FromError("failed to read board", err)
		}
		out[name] = statuses
	}
	return c.JSON(http.StatusOK, out)
}

// HandleResetBoard forgets every result of a mode
func (h *KPIHandlerImpl) HandleResetBoard(c echo.Context) error {
	if err := h.board.Reset(kpi.Mode(modeParam(c))); err != nil {
		return FromError("invalid mode", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleExtract returns the keyword search report for stored logs
func (h *KPIHandlerImpl) HandleExtract(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if len(req.FileIDs) == 0 {
		return NewValidationError("fileIds")
	}
	if len(req.Keywords) == 0 {
		return NewValidationError("keywords")
	}

	text, _, err := readStoredText(c.Request().Context(), h.store, h.reader, req.FileIDs)
	if err != nil {
		return err
	}

	report := kpi.FormatBlocks(kpi.Extract(text, req.Keywords))
	return c.String(http.StatusOK, report)
}

// Request/Response types

type evaluateRequest struct {
	FileIDs     []string               `json:"fileIds"`
	Suite       string                 `json:"suite"`
	Definitions []models.KPIDefinition `json:"definitions"`
	Mode        string                 `json:"mode"`
}

func (r *evaluateRequest) validate() error {
	if len(r.FileIDs) == 0 {
		return NewValidationError("fileIds")
	}
	if r.Suite == "" && len(r.Definitions) == 0 {
		return NewValidationError("suite or definitions")
	}
	for i, d := range r.Definitions {
		if strings.TrimSpace(d.Pattern) == "" {
			return NewValidationError(fmt.Sprintf("definitions[%d].pattern", i))
		}
	}
	return nil
}

func (r *evaluateRequest) modeOrDefault() string {
	if r.Mode == "" {
		return string(kpi.ModeSleepToRun)
	}
	return r.Mode
}

type evaluateResponse struct {
	Mode       string             `json:"mode,omitempty"`
	Suite      string             `json:"suite,omitempty"`
	Statuses   []models.KPIStatus `json:"statuses"`
	FileErrors []string           `json:"fileErrors,omitempty"`
}

type extractRequest struct {
	FileIDs  []string `json:"fileIds"`
	Keywords []string `json:"keywords"`
}

func modeParam(c echo.Context) string {
	if m := c.QueryParam("mode"); m != "" {
		return m
	}
	return string(kpi.ModeSleepToRun)
}
