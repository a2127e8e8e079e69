package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cardsync/internal/domain"
	"cardsync/internal/handler"
	"cardsync/internal/service"
	"cardsync/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte(content))
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRunHandler_Create_Success(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	runID := uuid.New()

	svc.On("CreateRun", mock.Anything, mock.MatchedBy(func(in service.CreateRunInput) bool {
		if in.Strategy != domain.StrategyVision || len(in.Images) != 1 || in.Images[0].Name != "card.png" {
			return false
		}
		data, _ := io.ReadAll(in.Images[0].Body)
		return string(data) == "png-bytes"
	})).Return(&domain.Run{ID: runID, Status: domain.RunStatusUploaded}, nil)

	body, contentType := multipartBody(t, map[string]string{"strategy": "vision"}, map[string]string{"card.png": "png-bytes"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/runs", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, runID.String(), resp.Data.(map[string]interface{})["id"])
	svc.AssertExpectations(t)
}

func TestRunHandler_Create_NoFiles(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)

	body, contentType := multipartBody(t, map[string]string{"strategy": "ocr"}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/runs", body)
	c.Request.Header.Set("Content-Type", contentType)

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
	svc.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything)
}

func TestRunHandler_Create_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unsupported", domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
		{"too large", domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"too many", domain.ErrTooManyFiles, http.StatusBadRequest, "TOO_MANY_FILES"},
		{"strategy", domain.ErrInvalidStrategy, http.StatusBadRequest, "INVALID_STRATEGY"},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockRunService)
			h := handler.NewRunHandler(svc, nil)
			svc.On("CreateRun", mock.Anything, mock.Anything).Return(nil, tt.err)

			body, contentType := multipartBody(t, nil, map[string]string{"a.png": "x"})
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/runs", body)
			c.Request.Header.Set("Content-Type", contentType)

			h.Create(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}
}

func TestRunHandler_List_Pagination(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	svc.On("List", mock.Anything, 0, 20).Return([]domain.RunSummary{{ID: uuid.New()}}, 1, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/runs?offset=-3&limit=500", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 1, resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.Limit)
	svc.AssertExpectations(t)
}

func TestRunHandler_GetByID_InvalidID(t *testing.T) {
	h := handler.NewRunHandler(new(mocks.MockRunService), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	h.GetByID(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)
}

func TestRunHandler_GetByID_NotFound(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/runs/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.GetByID(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RUN_NOT_FOUND", decode(t, w).Error.Code)
}

func TestRunHandler_Process(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Process", mock.Anything, id).Return([]domain.Record{
		domain.NewRecord(map[string]any{"Name": "Ada", "Primary Email": "ada@example.com"}),
		domain.NewErrorRecord("No text extracted from this image", "", ""),
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/runs/"+id.String()+"/process", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Process(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Primary Email":"ada@example.com"`)
	assert.Contains(t, w.Body.String(), `{"error":"No text extracted from this image"}`)
}

func TestRunHandler_Process_MissingKey(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Process", mock.Anything, id).Return(nil, domain.ErrMissingModelKey)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Process(c)

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "MISSING_MODEL_KEY", decode(t, w).Error.Code)
}

func TestRunHandler_Sync(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Sync", mock.Anything, id).Return(&domain.SyncReport{Results: []domain.ReconciliationResult{
		{Index: 0, Status: domain.ResultNew},
		{Index: 1, Status: domain.ResultSkipped},
	}}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Sync(c)

	assert.Equal(t, http.StatusOK, w.Code)
	counts := decode(t, w).Data.(map[string]interface{})["counts"].(map[string]interface{})
	assert.EqualValues(t, 1, counts["new"])
	assert.EqualValues(t, 1, counts["skipped"])
}

func TestRunHandler_Sync_Busy(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Sync", mock.Anything, id).Return(nil, domain.ErrRunBusy)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Sync(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RUN_BUSY", decode(t, w).Error.Code)
}

func TestRunHandler_Artifact(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Artifact", mock.Anything, id, domain.ExportCSV).Return(&service.Artifact{
		Filename:    "run_abc_2026-01-01.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte("#,Name\n1,Ada\n"),
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/?format=csv", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Artifact(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="run_abc_2026-01-01.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "#,Name"))
}

func TestRunHandler_Artifact_DefaultsToJSON(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Artifact", mock.Anything, id, domain.ExportJSON).Return(nil, domain.ErrNotExtracted)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Artifact(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_EXTRACTED", decode(t, w).Error.Code)
	svc.AssertExpectations(t)
}

func TestRunHandler_Delete(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("Clear", mock.Anything, id).Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodDelete, "/", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Delete(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "run cleared")
}

func TestRunHandler_ReplaceImages(t *testing.T) {
	svc := new(mocks.MockRunService)
	h := handler.NewRunHandler(svc, nil)
	id := uuid.New()
	svc.On("ReplaceImages", mock.Anything, id, mock.MatchedBy(func(u []service.ImageUpload) bool {
		return len(u) == 2
	})).Return(&domain.Run{ID: id, Status: domain.RunStatusUploaded}, nil)

	body, contentType := multipartBody(t, nil, map[string]string{"a.png": "1", "b.png": "2"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPut, "/", body)
	c.Request.Header.Set("Content-Type", contentType)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.ReplaceImages(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}
