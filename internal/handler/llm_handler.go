package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardsync/internal/domain"
	"cardsync/internal/logging"
	"cardsync/internal/service"
)

// LLMHandler exposes model key checks.
type LLMHandler struct {
	keyService service.KeyService
	logger     *zap.Logger
}

// NewLLMHandler creates a new LLMHandler.
func NewLLMHandler(keyService service.KeyService, logger *zap.Logger) *LLMHandler {
	return &LLMHandler{keyService: keyService, logger: logging.OrNop(logger)}
}

// CheckKey handles POST /api/v1/llm/check-key
// @Summary Test a model API key
// @Description Sends a tiny request with the given key, or the configured key when none is given
// @Tags llm
// @Accept json
// @Produce json
// @Param request body CheckKeyRequest false "Key to test"
// @Success 200 {object} Response{data=CheckKeyResponse} "Key accepted"
// @Failure 400 {object} ErrorResponseBody "Key rejected"
// @Router /llm/check-key [post]
func (h *LLMHandler) CheckKey(c *gin.Context) {
	var req CheckKeyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
	}

	err := h.keyService.Check(c.Request.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidModelKey) {
			c.JSON(http.StatusBadRequest, APIResponse{
				Success: false,
				Data:    CheckKeyResponse{Valid: false, Message: "Invalid API key or API request failed."},
				Error:   &APIError{Code: "INVALID_MODEL_KEY", Message: err.Error()},
			})
			return
		}
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, CheckKeyResponse{Valid: true, Message: "API key is working!"})
}
