package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"time"

	"github.com/google/uuid"

	cfg "github.com/kohlhaas/docintel/config"
	"github.com/kohlhaas/docintel/internal/batch"
	"github.com/kohlhaas/docintel/internal/engine"
	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/models"
	"github.com/kohlhaas/docintel/internal/ocr"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/internal/utils/validator"
	"github.com/kohlhaas/docintel/pkg/logger"
	"github.com/kohlhaas/docintel/pkg/queue"
	"github.com/kohlhaas/docintel/pkg/storage"
)

// defaultJobPriority routes jobs to the default queue unless the caller asks
// for something else.
const defaultJobPriority = 2

type service struct {
	eng      *engine.Engine
	queue    queue.Queue
	store    storage.Storage
	uploads  *validator.UploadValidator
	log      logger.Logger
	priority int
}

// New assembles a service from its parts.
func New(eng *engine.Engine, q queue.Queue, store storage.Storage, uploads *validator.UploadValidator, log logger.Logger) Service {
	if uploads == nil {
		uploads = validator.New(nil)
	}
	return &service{
		eng:      eng,
		queue:    q,
		store:    store,
		uploads:  uploads,
		log:      log,
		priority: defaultJobPriority,
	}
}

// GetService wires the service from environment configuration.
func GetService(log logger.Logger) (Service, error) {
	rc := cfg.GetRedisConfig()
	q, err := queue.New(&queue.Config{
		RedisAddr:     rc.Addr,
		RedisPassword: rc.Password,
		RedisDB:       rc.DB,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.New(storage.Backend(cfg.GetStorageConfig().Backend), log)
	if err != nil {
		return nil, err
	}

	eng := engine.New(engine.Options{Logger: log})

	if tc := cfg.GetTextractConfig(); tc.Enabled {
		backend, err := ocr.NewTextractBackend(context.Background(), ocr.TextractConfig{
			Region:        tc.Region,
			AccessKey:     tc.AccessKey,
			SecretKey:     tc.SecretKey,
			MinConfidence: float32(tc.MinConfidence),
		})
		if err != nil {
			log.Warn("textract backend not available", logger.Error(err))
		} else {
			eng.OCR().RegisterBuiltin("textract", backend)
		}
	}

	return New(eng, q, store, validator.New(nil), log), nil
}

func (s *service) Engine() *engine.Engine { return s.eng }

func (s *service) ExtractUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, extractCfg *types.ExtractionConfig) (*types.ExtractionResult, error) {
	info, err := s.uploads.Validate(header)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "read upload")
	}
	return s.eng.ExtractBytes(ctx, data, header.Filename, info.MimeType, extractCfg)
}

func (s *service) ExtractUploads(ctx context.Context, headers []*multipart.FileHeader, extractCfg *types.ExtractionConfig) ([]batch.Result, error) {
	infos, err := s.uploads.ValidateAll(headers)
	if err != nil {
		return nil, err
	}

	items := make([]engine.BatchItem, len(headers))
	for i, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, errdef.Wrap(errdef.KindIO, err, "open upload")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errdef.Wrap(errdef.KindIO, err, "read upload")
		}
		items[i] = engine.BatchItem{
			Data:         data,
			PathHint:     header.Filename,
			DeclaredMime: infos[i].MimeType,
		}
	}
	return s.eng.ExtractBatch(ctx, items, extractCfg), nil
}

func (s *service) SubmitJob(ctx context.Context, file multipart.File, header *multipart.FileHeader, extractCfg *types.ExtractionConfig) (*models.ExtractionJob, error) {
	if _, err := s.uploads.Validate(header); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	storageKey := "uploads/" + jobID

	if _, err := s.store.Store(ctx, file, storageKey); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &queue.Job{
		ID:         jobID,
		StorageKey: storageKey,
		Filename:   header.Filename,
		Size:       header.Size,
		Priority:   s.priority,
		Config:     extractCfg,
		CreatedAt:  now,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "enqueue job")
	}

	status := &queue.Status{
		JobID:     jobID,
		State:     string(models.JobPending),
		Filename:  header.Filename,
		Size:      header.Size,
		StartedAt: now,
	}
	if err := s.queue.SaveStatus(ctx, status); err != nil {
		s.log.Error("initial job status not saved",
			logger.String("jobId", jobID),
			logger.Error(err),
		)
	}

	s.log.Info("extraction job submitted",
		logger.String("jobId", jobID),
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
	)
	return jobFromStatus(status), nil
}

func (s *service) JobStatus(ctx context.Context, jobID string) (*models.ExtractionJob, error) {
	status, err := s.queue.Status(ctx, jobID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "job not found")
	}
	return jobFromStatus(status), nil
}

func (s *service) JobResult(ctx context.Context, jobID string) (*types.ExtractionResult, error) {
	status, err := s.queue.Status(ctx, jobID)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "job not found")
	}
	if status.State != string(models.JobCompleted) {
		return nil, errdef.Newf(errdef.KindValidation, "job %s is %s, not completed", jobID, status.State)
	}

	resultKey := status.ResultKey
	if resultKey == "" {
		resultKey = resultKeyFor(jobID)
	}
	reader, err := s.store.Get(ctx, resultKey)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var result types.ExtractionResult
	if err := json.NewDecoder(reader).Decode(&result); err != nil {
		return nil, errdef.Wrap(errdef.KindParsing, err, "decode stored result")
	}
	return &result, nil
}

func (s *service) CancelJob(ctx context.Context, jobID string) error {
	if err := s.queue.Cancel(ctx, jobID); err != nil {
		return errdef.Wrap(errdef.KindValidation, err, "job not cancellable")
	}
	s.log.Info("job cancelled", logger.String("jobId", jobID))
	return nil
}

// HandleJob runs one queued job: fetch the upload, extract, store the result
// JSON, and record the terminal status.
func (s *service) HandleJob(ctx context.Context, job *queue.Job) error {
	running := &queue.Status{
		JobID:     job.ID,
		State:     string(models.JobRunning),
		Progress:  0.5,
		Filename:  job.Filename,
		Size:      job.Size,
		StartedAt: time.Now(),
	}
	if err := s.queue.SaveStatus(ctx, running); err != nil {
		s.log.Error("running job status not saved",
			logger.String("jobId", job.ID),
			logger.Error(err),
		)
	}

	result, err := s.runJob(ctx, job)
	if err != nil {
		structured := errdef.AsError(err)
		failed := &queue.Status{
			JobID:      job.ID,
			State:      string(models.JobFailed),
			Error:      structured.Message,
			ErrorCode:  structured.Code,
			Filename:   job.Filename,
			Size:       job.Size,
			StartedAt:  running.StartedAt,
			FinishedAt: time.Now(),
		}
		if serr := s.queue.SaveStatus(ctx, failed); serr != nil {
			s.log.Error("failed job status not saved",
				logger.String("jobId", job.ID),
				logger.Error(serr),
			)
		}
		return err
	}

	resultKey := resultKeyFor(job.ID)
	payload, err := json.Marshal(result)
	if err != nil {
		return errdef.Wrap(errdef.KindIO, err, "marshal result")
	}
	if _, err := s.store.Store(ctx, bytes.NewReader(payload), resultKey); err != nil {
		return err
	}

	completed := &queue.Status{
		JobID:      job.ID,
		State:      string(models.JobCompleted),
		Progress:   1.0,
		ResultKey:  resultKey,
		Filename:   job.Filename,
		Size:       job.Size,
		StartedAt:  running.StartedAt,
		FinishedAt: time.Now(),
	}
	return s.queue.SaveStatus(ctx, completed)
}

func (s *service) runJob(ctx context.Context, job *queue.Job) (*types.ExtractionResult, error) {
	reader, err := s.store.Get(ctx, job.StorageKey)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "read stored upload")
	}
	return s.eng.ExtractBytes(ctx, data, job.Filename, "", job.Config)
}

func resultKeyFor(jobID string) string { return "results/" + jobID + ".json" }

func jobFromStatus(status *queue.Status) *models.ExtractionJob {
	state := models.JobStatus(status.State)
	switch state {
	case models.JobPending, models.JobRunning, models.JobCompleted, models.JobFailed, models.JobCancelled:
	default:
		state = models.JobPending
	}
	return &models.ExtractionJob{
		ID:        status.JobID,
		Status:    state,
		Progress:  status.Progress,
		Error:     status.Error,
		ErrorCode: status.ErrorCode,
		Filename:  status.Filename,
		FileSize:  status.Size,
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}
}
