package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cardsync/internal/handler"
	"cardsync/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	logger *zap.Logger,
	allowedOrigins []string,
	runH *handler.RunHandler,
	llmH *handler.LLMHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	runs := v1.Group("/runs")
	runs.POST("", runH.Create)
	runs.GET("", runH.List)
	runs.GET("/:id", runH.GetByID)
	runs.PUT("/:id/images", runH.ReplaceImages)
	runs.POST("/:id/process", runH.Process)
	runs.POST("/:id/sync", runH.Sync)
	runs.GET("/:id/artifact", runH.Artifact)
	runs.DELETE("/:id", runH.Delete)

	v1.POST("/llm/check-key", llmH.CheckKey)

	return r
}
