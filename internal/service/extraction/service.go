// Package extraction glues the engine to the HTTP API, job queue, and blob
// storage.
package extraction

import (
	"context"
	"mime/multipart"

	"github.com/kohlhaas/docintel/internal/batch"
	"github.com/kohlhaas/docintel/internal/engine"
	"github.com/kohlhaas/docintel/internal/models"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/queue"
)

// Service is the application-facing extraction surface. Sync calls run the
// engine inline; job calls park the upload in blob storage and dispatch to
// the queue.
type Service interface {
	ExtractUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, cfg *types.ExtractionConfig) (*types.ExtractionResult, error)
	ExtractUploads(ctx context.Context, headers []*multipart.FileHeader, cfg *types.ExtractionConfig) ([]batch.Result, error)

	SubmitJob(ctx context.Context, file multipart.File, header *multipart.FileHeader, cfg *types.ExtractionConfig) (*models.ExtractionJob, error)
	JobStatus(ctx context.Context, jobID string) (*models.ExtractionJob, error)
	JobResult(ctx context.Context, jobID string) (*types.ExtractionResult, error)
	CancelJob(ctx context.Context, jobID string) error

	// HandleJob is the worker-side entry point for one queued job.
	HandleJob(ctx context.Context, job *queue.Job) error

	Engine() *engine.Engine
}
