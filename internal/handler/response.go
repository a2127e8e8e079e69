package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound, "RUN_NOT_FOUND", "run not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrRunBusy):
		return http.StatusConflict, "RUN_BUSY", "run is already being processed"
	case errors.Is(err, domain.ErrNoImages):
		return http.StatusBadRequest, "NO_IMAGES", "at least one image is required"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: jpg, jpeg, png, bmp"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrTooManyFiles):
		return http.StatusBadRequest, "TOO_MANY_FILES", "too many files in one upload"
	case errors.Is(err, domain.ErrInvalidStrategy):
		return http.StatusBadRequest, "INVALID_STRATEGY", "unknown extraction strategy; allowed: ocr, vision"
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest, "INVALID_FORMAT", "unsupported export format; allowed: json, csv, xlsx"
	case errors.Is(err, domain.ErrNotExtracted):
		return http.StatusConflict, "NOT_EXTRACTED", "process the run before syncing or downloading"
	case errors.Is(err, domain.ErrMissingModelKey):
		return http.StatusPreconditionFailed, "MISSING_MODEL_KEY", "Please enter an OpenAI API key."
	case errors.Is(err, domain.ErrInvalidModelKey):
		return http.StatusBadRequest, "INVALID_MODEL_KEY", "Invalid API key or API request failed."
	case errors.Is(err, domain.ErrStoreNotConfigured):
		return http.StatusPreconditionFailed, "STORE_NOT_CONFIGURED", "Airtable credentials not configured"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		logger.Error("handler: internal error",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)), zap.Error(err))
	}
	RespondError(c, status, code, msg)
}
