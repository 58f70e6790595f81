// handlers_upload_test.go - Tests for upload handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/testutil"
	"github.com/labstack/echo/v4"
)

// checkAPIError asserts err is an *APIError with the given status and code.
func checkAPIError(t *testing.T, err error, wantStatus int, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != wantStatus {
		t.Errorf("expected status %d, got %d", wantStatus, apiErr.Status)
	}
	if apiErr.Code != wantCode {
		t.Errorf("expected error code %s, got %s", wantCode, apiErr.Code)
	}
}

func TestUploadHandler_HandleUploadFile(t *testing.T) {
	tests := []struct {
		name       string
		request    uploadFileRequest
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{
			name: "valid log upload",
			request: uploadFileRequest{
				Name: "mcu.txt",
				Data: base64.StdEncoding.EncodeToString([]byte("01-00:00:01.000 PO HI [PM] POFF(1)")),
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "empty name",
			request: uploadFileRequest{
				Data: base64.StdEncoding.EncodeToString([]byte("content")),
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name:       "empty data",
			request:    uploadFileRequest{Name: "mcu.txt"},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "VALIDATION_ERROR",
		},
		{
			name: "invalid base64",
			request: uploadFileRequest{
				Name: "mcu.txt",
				Data: "not-valid-base64!!!",
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    true,
			errCode:    "BAD_REQUEST",
		},
		{
			name: "large file upload",
			request: uploadFileRequest{
				Name: "large.log",
				Data: base64.StdEncoding.EncodeToString(make([]byte, 1024*1024)),
			},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			handler := NewUploadHandler(store)

			e := echo.New()
			body, _ := json.Marshal(tt.request)
			req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler.HandleUploadFile(c)

			if tt.wantErr {
				checkAPIError(t, err, tt.wantStatus, tt.errCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var response models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.ID == "" {
				t.Error("expected non-empty ID in response")
			}
			if response.Name != tt.request.Name {
				t.Errorf("expected name %s, got %s", tt.request.Name, response.Name)
			}
		})
	}
}

func TestUploadHandler_HandleUploadFile_StoreFailure(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.SaveErr = errors.New("disk full")
	handler := NewUploadHandler(store)

	e := echo.New()
	body, _ := json.Marshal(uploadFileRequest{Name: "a.txt", Data: base64.StdEncoding.EncodeToString([]byte("x"))})
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c := e.NewContext(req, httptest.NewRecorder())

	checkAPIError(t, handler.HandleUploadFile(c), http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestUploadHandler_HandleUploadBinary(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	handler := NewUploadHandler(store)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "boot.log")
	part.Write([]byte("[    0.000100] Booting Linux on physical CPU 0x0"))
	writer.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.HandleUploadBinary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if store.FileCount() != 1 {
		t.Errorf("expected 1 stored file, got %d", store.FileCount())
	}

	// No file part
	req = httptest.NewRequest(http.MethodPost, "/api/files/upload/binary", strings.NewReader(""))
	c = e.NewContext(req, httptest.NewRecorder())
	checkAPIError(t, handler.HandleUploadBinary(c), http.StatusBadRequest, "BAD_REQUEST")
}

func TestUploadHandler_HandleGetRecentFiles(t *testing.T) {
	tests := []struct {
		name       string
		setupFiles map[string][]byte
		wantCount  int
	}{
		{
			name:       "empty storage",
			setupFiles: map[string][]byte{},
			wantCount:  0,
		},
		{
			name: "only log files",
			setupFiles: map[string][]byte{
				"mcu.txt":  []byte("content1"),
				"boot.log": []byte("content2"),
			},
			wantCount: 2,
		},
		{
			name: "suite files excluded",
			setupFiles: map[string][]byte{
				"mcu.txt":       []byte("log content"),
				"suites.yaml":   []byte("suites:"),
				"custom.yml":    []byte("suites:"),
				"messages.json": []byte("[]"),
			},
			wantCount: 2,
		},
		{
			name: "many files limited to 20",
			setupFiles: func() map[string][]byte {
				files := make(map[string][]byte)
				for i := 0; i < 30; i++ {
					files[fmt.Sprintf("file%d.txt", i)] = []byte("content")
				}
				return files
			}(),
			wantCount: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			for name, data := range tt.setupFiles {
				store.AddFile(fmt.Sprintf("id-%s", name), name, data)
			}
			handler := NewUploadHandler(store)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/files/recent", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := handler.HandleGetRecentFiles(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var files []models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if len(files) != tt.wantCount {
				t.Errorf("expected %d files, got %d", tt.wantCount, len(files))
			}
			for _, f := range files {
				if strings.HasSuffix(f.Name, ".yaml") || strings.HasSuffix(f.Name, ".yml") {
					t.Errorf("found excluded file type: %s", f.Name)
				}
			}
		})
	}
}

func TestUploadHandler_HandleGetFile(t *testing.T) {
	tests := []struct {
		name       string
		fileID     string
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{name: "existing file", fileID: "test-file-1", wantStatus: http.StatusOK},
		{name: "missing file id", fileID: "", wantStatus: http.StatusBadRequest, wantErr: true, errCode: "VALIDATION_ERROR"},
		{name: "non-existent file", fileID: "does-not-exist", wantStatus: http.StatusNotFound, wantErr: true, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.AddFile("test-file-1", "mcu.txt", []byte("content"))
			handler := NewUploadHandler(store)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/files/:id", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleGetFile(c)
			if tt.wantErr {
				checkAPIError(t, err, tt.wantStatus, tt.errCode)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var response models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if response.ID != tt.fileID {
				t.Errorf("expected ID %s, got %s", tt.fileID, response.ID)
			}
		})
	}
}

func TestUploadHandler_HandleDeleteFile(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("test-file-1", "mcu.txt", []byte("content"))
	handler := NewUploadHandler(store)
	e := echo.New()

	req := httptest.NewRequest(http.MethodDelete, "/api/files/:id", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("test-file-1")

	if err := handler.HandleDeleteFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if store.FileCount() != 0 {
		t.Errorf("expected file to be removed, %d left", store.FileCount())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/files/:id", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("test-file-1")
	checkAPIError(t, handler.HandleDeleteFile(c), http.StatusNotFound, "NOT_FOUND")
}

func TestUploadHandler_HandleRenameFile(t *testing.T) {
	tests := []struct {
		name    string
		fileID  string
		newName string
		wantErr bool
		errCode string
	}{
		{name: "rename existing", fileID: "test-file-1", newName: "bench-run.txt"},
		{name: "blank name", fileID: "test-file-1", newName: "  ", wantErr: true, errCode: "VALIDATION_ERROR"},
		{name: "unknown file", fileID: "nope", newName: "x.txt", wantErr: true, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.AddFile("test-file-1", "mcu.txt", []byte("content"))
			handler := NewUploadHandler(store)

			e := echo.New()
			body, _ := json.Marshal(renameFileRequest{Name: tt.newName})
			req := httptest.NewRequest(http.MethodPut, "/api/files/:id", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.fileID)

			err := handler.HandleRenameFile(c)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if apiErr, ok := err.(*APIError); !ok || apiErr.Code != tt.errCode {
					t.Errorf("expected error code %s, got %v", tt.errCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			info, _ := store.Get(tt.fileID)
			if info.Name != tt.newName {
				t.Errorf("expected name %s, got %s", tt.newName, info.Name)
			}
		})
	}
}

func TestUploadHandler_HandleGetRecentFilesByKind(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("log-1", "mcu.txt", []byte("01-00:00:01.000 PO HI [PM] POFF(1)"))
	store.AddFile("json-1", "export", []byte(`[{"timestamp":"x"}]`))
	store.AddFile("suite-1", "suites.yaml", []byte("suites: []"))
	handler := NewUploadHandler(store)

	tests := []struct {
		kind    string
		wantIDs []string
	}{
		{kind: "log", wantIDs: []string{"log-1"}},
		{kind: "interchange", wantIDs: []string{"json-1"}},
		{kind: "SUITES", wantIDs: []string{"suite-1"}},
		{kind: "", wantIDs: []string{"json-1", "log-1"}},
	}

	for _, tt := range tests {
		t.Run("kind="+tt.kind, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/files/recent?kind="+tt.kind, nil)
			rec := httptest.NewRecorder()
			if err := handler.HandleGetRecentFiles(e.NewContext(req, rec)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var files []models.FileInfo
			if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			var ids []string
			for _, f := range files {
				ids = append(ids, f.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("expected %v, got %v", tt.wantIDs, ids)
			}
		})
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/files/recent?kind=binary", nil)
	checkAPIError(t, handler.HandleGetRecentFiles(e.NewContext(req, httptest.NewRecorder())), http.StatusBadRequest, "VALIDATION_ERROR")
}
