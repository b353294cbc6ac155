package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kohlhaas/docintel/internal/service/extraction"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// SystemHandler serves the cache and plugin introspection routes.
type SystemHandler struct {
	svc extraction.Service
	log logger.Logger
}

// CacheStats reports entry and hit/miss counters.
func (h *SystemHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Engine().CacheStats(c.Request.Context()))
}

// ClearCache empties the result cache.
func (h *SystemHandler) ClearCache(c *gin.Context) {
	if err := h.svc.Engine().ClearCache(c.Request.Context()); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// Plugins lists registered plugins and the built-in format coverage.
func (h *SystemHandler) Plugins(c *gin.Context) {
	eng := h.svc.Engine()
	reg := eng.Plugins()
	c.JSON(http.StatusOK, gin.H{
		"extractors":          reg.ListExtractors(),
		"ocrBackends":         reg.ListOCRBackends(),
		"postProcessors":      reg.ListPostProcessors(),
		"validators":          reg.ListValidators(),
		"supportedMediaTypes": eng.SupportedMediaTypes(),
	})
}

// Health is the liveness probe.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
