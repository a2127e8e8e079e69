package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"cardsync/internal/domain"
	"cardsync/internal/handler"
	"cardsync/mocks"
)

func TestLLMHandler_CheckKey_Valid(t *testing.T) {
	svc := new(mocks.MockKeyService)
	h := handler.NewLLMHandler(svc, nil)
	svc.On("Check", mock.Anything, "sk-test").Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/llm/check-key", strings.NewReader(`{"api_key":"sk-test"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CheckKey(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "API key is working!")
	svc.AssertExpectations(t)
}

func TestLLMHandler_CheckKey_EmptyBodyUsesConfiguredKey(t *testing.T) {
	svc := new(mocks.MockKeyService)
	h := handler.NewLLMHandler(svc, nil)
	svc.On("Check", mock.Anything, "").Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/llm/check-key", nil)

	h.CheckKey(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestLLMHandler_CheckKey_Rejected(t *testing.T) {
	svc := new(mocks.MockKeyService)
	h := handler.NewLLMHandler(svc, nil)
	svc.On("Check", mock.Anything, "sk-bad").Return(fmt.Errorf("%w: status 401", domain.ErrInvalidModelKey))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/llm/check-key", strings.NewReader(`{"api_key":"sk-bad"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CheckKey(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_MODEL_KEY", resp.Error.Code)
}

func TestLLMHandler_CheckKey_BadJSON(t *testing.T) {
	h := handler.NewLLMHandler(new(mocks.MockKeyService), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/api/v1/llm/check-key", strings.NewReader(`{`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CheckKey(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	h := handler.NewHealthHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/readyz", nil)
	h.Readiness(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/healthz", nil)
	h.Liveness(c)
	assert.Equal(t, http.StatusOK, w.Code)
}
