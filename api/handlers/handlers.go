// Package handlers implements the HTTP surface over the extraction service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/service/extraction"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// Handlers groups the route handlers sharing one service.
type Handlers struct {
	Extract *ExtractHandler
	Jobs    *JobsHandler
	System  *SystemHandler
}

func NewHandlers(svc extraction.Service, log logger.Logger) *Handlers {
	return &Handlers{
		Extract: &ExtractHandler{svc: svc, log: log},
		Jobs:    &JobsHandler{svc: svc, log: log},
		System:  &SystemHandler{svc: svc, log: log},
	}
}

// parseConfig reads the optional "config" multipart field as an extraction
// config JSON document. Clients send snake_case or camelCase keys; both
// deserialize identically.
func parseConfig(c *gin.Context) (*types.ExtractionConfig, error) {
	raw := c.PostForm("config")
	if raw == "" {
		return nil, nil
	}
	cfg, err := types.DecodeConfig([]byte(raw))
	if err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "invalid extraction config")
	}
	return cfg, nil
}

// writeError maps a structured error to an HTTP response. The body is the
// errdef JSON shape so callers can branch on kind and code.
func writeError(c *gin.Context, log logger.Logger, err error) {
	structured := errdef.AsError(err)
	status := statusFor(structured.Kind)

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			logger.String("path", c.Request.URL.Path),
			logger.Error(err),
		)
	}
	c.JSON(status, structured)
}

func statusFor(kind errdef.Kind) int {
	switch kind {
	case errdef.KindValidation:
		return http.StatusBadRequest
	case errdef.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case errdef.KindParsing:
		return http.StatusUnprocessableEntity
	case errdef.KindMissingDependency:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
