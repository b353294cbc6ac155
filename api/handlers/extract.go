package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/service/extraction"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// ExtractHandler serves the synchronous extraction routes.
type ExtractHandler struct {
	svc extraction.Service
	log logger.Logger
}

// Extract runs one upload through the engine and returns the full result.
func (h *ExtractHandler) Extract(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		writeError(c, h.log, errdef.Wrap(errdef.KindValidation, err, "missing file upload"))
		return
	}
	defer file.Close()

	cfg, err := parseConfig(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	result, err := h.svc.ExtractUpload(c.Request.Context(), file, header, cfg)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExtractBatch runs several uploads concurrently. Each slot carries either a
// result or a structured error; one bad document never fails the batch.
func (h *ExtractHandler) ExtractBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, h.log, errdef.Wrap(errdef.KindValidation, err, "invalid multipart form"))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		writeError(c, h.log, errdef.New(errdef.KindValidation, "no files provided"))
		return
	}

	cfg, err := parseConfig(c)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	results, err := h.svc.ExtractUploads(c.Request.Context(), files, cfg)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	items := make([]gin.H, len(results))
	for i, r := range results {
		if r.Err != nil {
			items[i] = gin.H{"filename": files[i].Filename, "error": errdef.AsError(r.Err)}
			continue
		}
		items[i] = gin.H{"filename": files[i].Filename, "result": r.Value}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "items": items})
}
