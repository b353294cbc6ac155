package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/service/extraction"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// JobsHandler serves the deferred extraction routes.
type JobsHandler struct {
	svc extraction.Service
	log logger.Logger
}

// Submit parks an upload and queues an extraction job.
func (h *JobsHandler) Submit(c *gin.Context) {
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

	job, err := h.svc.SubmitJob(c.Request.Context(), file, header, cfg)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// Status reports where a job is in its lifecycle.
func (h *JobsHandler) Status(c *gin.Context) {
	jobID := c.Param("jobId")
	job, err := h.svc.JobStatus(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Result returns the stored extraction result of a completed job.
func (h *JobsHandler) Result(c *gin.Context) {
	jobID := c.Param("jobId")
	result, err := h.svc.JobResult(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Cancel removes a pending job from the queue.
func (h *JobsHandler) Cancel(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.svc.CancelJob(c.Request.Context(), jobID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": jobID, "status": "cancelled"})
}
