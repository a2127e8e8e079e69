package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/logging"
	"cardsync/internal/service"
)

// RunHandler handles the upload, process, sync and download endpoints.
type RunHandler struct {
	runService service.RunService
	logger     *zap.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runService service.RunService, logger *zap.Logger) *RunHandler {
	return &RunHandler{runService: runService, logger: logging.OrNop(logger)}
}

// Create handles POST /api/v1/runs
// @Summary Start a run
// @Description Upload business card images (jpg, jpeg, png, bmp) and start a new run
// @Tags runs
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Images to process (repeat the field per file)"
// @Param strategy formData string false "Extraction strategy: ocr or vision"
// @Success 201 {object} Response{data=domain.Run} "Run created"
// @Failure 400 {object} ErrorResponseBody "Missing files or unsupported type"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Router /runs [post]
func (h *RunHandler) Create(c *gin.Context) {
	uploads, closeAll, ok := h.formUploads(c)
	if !ok {
		return
	}
	defer closeAll()

	run, err := h.runService.CreateRun(c.Request.Context(), service.CreateRunInput{
		Strategy: domain.Strategy(c.PostForm("strategy")),
		Images:   uploads,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondCreated(c, run)
}

// List handles GET /api/v1/runs
// @Summary List runs
// @Description List runs, newest first
// @Tags runs
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.RunSummary,meta=PagMeta} "List of runs"
// @Router /runs [get]
func (h *RunHandler) List(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := h.runService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// GetByID handles GET /api/v1/runs/:id
// @Summary Get a run
// @Description Get a live run, or its history once cleared
// @Tags runs
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Success 200 {object} Response{data=service.RunDetail} "Run detail"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Router /runs/{id} [get]
func (h *RunHandler) GetByID(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	detail, err := h.runService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, detail)
}

// ReplaceImages handles PUT /api/v1/runs/:id/images
// @Summary Replace run images
// @Description Upload a new image set; previous records and report are discarded
// @Tags runs
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Param files formData file true "Images to process"
// @Success 200 {object} Response{data=domain.Run} "Run reset with new images"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Failure 409 {object} ErrorResponseBody "Run busy"
// @Router /runs/{id}/images [put]
func (h *RunHandler) ReplaceImages(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	uploads, closeAll, ok := h.formUploads(c)
	if !ok {
		return
	}
	defer closeAll()

	run, err := h.runService.ReplaceImages(c.Request.Context(), id, uploads)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, run)
}

// Process handles POST /api/v1/runs/:id/process
// @Summary Extract records
// @Description Run the extraction strategy over every image of the run
// @Tags runs
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Success 200 {object} Response "Records in image order"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Failure 409 {object} ErrorResponseBody "Run busy"
// @Failure 412 {object} ErrorResponseBody "Model API key missing"
// @Router /runs/{id}/process [post]
func (h *RunHandler) Process(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	records, err := h.runService.Process(c.Request.Context(), id)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"run_id": id, "records": records})
}

// Sync handles POST /api/v1/runs/:id/sync
// @Summary Reconcile with Airtable
// @Description Create new contacts and update changed ones, keyed by Primary Email
// @Tags runs
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Success 200 {object} Response{data=domain.SyncReport} "Sync report"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Failure 409 {object} ErrorResponseBody "Run busy or not processed"
// @Router /runs/{id}/sync [post]
func (h *RunHandler) Sync(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	report, err := h.runService.Sync(c.Request.Context(), id)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"report": report, "counts": report.Counts()})
}

// Artifact handles GET /api/v1/runs/:id/artifact
// @Summary Download records
// @Description Download the run's records as json (extracted_data.json), csv, or xlsx
// @Tags runs
// @Produce json
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Run ID (UUID)"
// @Param format query string false "Export format: json, csv, xlsx" default(json)
// @Success 200 {file} file "Artifact file"
// @Failure 400 {object} ErrorResponseBody "Invalid format"
// @Failure 409 {object} ErrorResponseBody "Run not processed"
// @Router /runs/{id}/artifact [get]
func (h *RunHandler) Artifact(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	format := domain.ExportFormat(c.DefaultQuery("format", string(domain.ExportJSON)))

	art, err := h.runService.Artifact(c.Request.Context(), id, format)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.Filename))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// Delete handles DELETE /api/v1/runs/:id
// @Summary Clear a run
// @Description Discard the run's images and in-memory state
// @Tags runs
// @Produce json
// @Param id path string true "Run ID (UUID)"
// @Success 200 {object} Response{data=MessageResponse} "Run cleared"
// @Failure 404 {object} ErrorResponseBody "Run not found"
// @Failure 409 {object} ErrorResponseBody "Run busy"
// @Router /runs/{id} [delete]
func (h *RunHandler) Delete(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}
	if err := h.runService.Clear(c.Request.Context(), id); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, MessageResponse{Message: "run cleared"})
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

// formUploads opens every "files" part of a multipart request. The closer
// must be called once the uploads have been consumed.
func (h *RunHandler) formUploads(c *gin.Context) ([]service.ImageUpload, func(), bool) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart form with files field is required")
		return nil, nil, false
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "files field is required")
		return nil, nil, false
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	uploads := make([]service.ImageUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			h.logger.Warn("runHandler.formUploads: failed to open part",
				zap.String("filename", fh.Filename), zap.Error(err))
			RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
			return nil, nil, false
		}
		opened = append(opened, f)
		uploads = append(uploads, service.ImageUpload{Name: fh.Filename, Size: fh.Size, Body: f})
	}
	return uploads, closeAll, true
}
