package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kohlhaas/docintel/pkg/logger"
	"github.com/kohlhaas/docintel/pkg/queue"
)

// JobHandler runs one extraction job end to end, including status updates.
type JobHandler interface {
	HandleJob(ctx context.Context, job *queue.Job) error
}

// ExtractWorker consumes extract:document tasks.
type ExtractWorker struct {
	baseWorker
	handler JobHandler
}

// NewExtractWorker wires an asynq server to the job handler.
func NewExtractWorker(cfg *Config, handler JobHandler, log logger.Logger) *ExtractWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	queues := cfg.Queues
	if queues == nil {
		queues = queue.DefaultQueues
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &ExtractWorker{
		baseWorker: baseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			log:    log,
		},
		handler: handler,
	}
	w.mux.HandleFunc(queue.TaskTypeExtractDocument, w.handleExtractDocument)
	return w
}

func (w *ExtractWorker) handleExtractDocument(ctx context.Context, t *asynq.Task) error {
	var job queue.Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		w.log.Error("undecodable job payload",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("unmarshal job: %w", err)
	}
	if job.ID == "" || job.StorageKey == "" {
		return fmt.Errorf("job payload missing id or storage key")
	}

	w.log.Info("extraction job started",
		logger.String("jobId", job.ID),
		logger.String("filename", job.Filename),
		logger.Int64("size", job.Size),
	)

	if err := w.handler.HandleJob(ctx, &job); err != nil {
		w.log.Error("extraction job failed",
			logger.String("jobId", job.ID),
			logger.Error(err),
		)
		return err
	}

	w.log.Info("extraction job completed", logger.String("jobId", job.ID))
	return nil
}

// Start runs the server until the context is cancelled.
func (w *ExtractWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.log.Error("worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
