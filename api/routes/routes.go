// Package routes binds the HTTP routes to their handlers.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/kohlhaas/docintel/api/handlers"
	"github.com/kohlhaas/docintel/api/middleware"
)

// SetupRoutes registers every route on the router.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	r.Use(middleware.CORS())

	v1 := r.Group("/api/v1")

	v1.GET("/health", h.System.Health)

	v1.POST("/extract", h.Extract.Extract)
	v1.POST("/extract/batch", h.Extract.ExtractBatch)

	jobs := v1.Group("/jobs")
	{
		jobs.POST("", h.Jobs.Submit)
		jobs.GET("/:jobId", h.Jobs.Status)
		jobs.GET("/:jobId/result", h.Jobs.Result)
		jobs.DELETE("/:jobId", h.Jobs.Cancel)
	}

	v1.GET("/cache/stats", h.System.CacheStats)
	v1.DELETE("/cache", h.System.ClearCache)
	v1.GET("/plugins", h.System.Plugins)
}
