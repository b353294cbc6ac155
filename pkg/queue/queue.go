// Package queue dispatches deferred extraction jobs over asynq and keeps job
// status snapshots in redis so the API can answer status queries after the
// task record itself is gone.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/kohlhaas/docintel/internal/types"
)

// TaskTypeExtractDocument is the asynq task type for one extraction job.
const TaskTypeExtractDocument = "extract:document"

// Priority queue names. Enqueue picks one from Job.Priority.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues is the weight map shared by the worker server.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

const statusTTL = 24 * time.Hour

// Job is the payload of one queued extraction. The upload itself lives in
// blob storage under StorageKey.
type Job struct {
	ID         string                  `json:"id"`
	StorageKey string                  `json:"storageKey"`
	Filename   string                  `json:"filename"`
	Size       int64                   `json:"size"`
	Priority   int                     `json:"priority"`
	Config     *types.ExtractionConfig `json:"config,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// Status is a job status snapshot.
type Status struct {
	JobID      string    `json:"jobId"`
	State      string    `json:"state"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  int       `json:"errorCode,omitempty"`
	ResultKey  string    `json:"resultKey,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Size       int64     `json:"size,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Queue is the job dispatch interface used by the service layer.
type Queue interface {
	Enqueue(ctx context.Context, job *Job) error
	Status(ctx context.Context, jobID string) (*Status, error)
	Cancel(ctx context.Context, jobID string) error
	SaveStatus(ctx context.Context, status *Status) error
}

// Config tunes the asynq client side.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxRetries    int
	JobTimeout    time.Duration
}

// AsynqQueue implements Queue over asynq plus a plain redis client for
// status snapshots.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	cfg       *Config
}

// New creates a queue client.
func New(cfg *Config) (*AsynqQueue, error) {
	if cfg == nil {
		return nil, errors.New("queue config is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		cfg: cfg,
	}, nil
}

// Close releases the underlying connections.
func (q *AsynqQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}

// Enqueue dispatches a job to the queue matching its priority.
func (q *AsynqQueue) Enqueue(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(q.cfg.MaxRetries),
		asynq.Timeout(q.cfg.JobTimeout),
		asynq.TaskID(job.ID),
		asynq.Queue(queueFor(job.Priority)),
	}

	task := asynq.NewTask(TaskTypeExtractDocument, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Status returns the freshest snapshot for a job. Snapshots written by the
// worker win; otherwise the live task record is consulted.
func (q *AsynqQueue) Status(ctx context.Context, jobID string) (*Status, error) {
	data, err := q.redis.Get(ctx, statusKey(jobID)).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read job status: %w", err)
	}
	if err == nil {
		var status Status
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("decode job status: %w", err)
		}
		return &status, nil
	}

	info, err := q.taskInfo(jobID)
	if err != nil {
		return nil, fmt.Errorf("job %s not found: %w", jobID, err)
	}
	return statusFromTask(info), nil
}

// Cancel removes a pending job. Jobs already running finish on their own.
func (q *AsynqQueue) Cancel(ctx context.Context, jobID string) error {
	var lastErr error
	for _, name := range []string{QueueCritical, QueueDefault, QueueLow} {
		if err := q.inspector.DeleteTask(name, jobID); err == nil {
			return q.SaveStatus(ctx, &Status{
				JobID:      jobID,
				State:      "cancelled",
				FinishedAt: time.Now(),
			})
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("cancel job %s: %w", jobID, lastErr)
}

// SaveStatus persists a snapshot with a bounded lifetime.
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal job status: %w", err)
	}
	if err := q.redis.Set(ctx, statusKey(status.JobID), data, statusTTL).Err(); err != nil {
		return fmt.Errorf("save job status: %w", err)
	}
	return nil
}

func (q *AsynqQueue) taskInfo(jobID string) (*asynq.TaskInfo, error) {
	var lastErr error
	for _, name := range []string{QueueCritical, QueueDefault, QueueLow} {
		info, err := q.inspector.GetTaskInfo(name, jobID)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func queueFor(priority int) string {
	switch priority {
	case 1:
		return QueueCritical
	case 2:
		return QueueDefault
	default:
		return QueueLow
	}
}

func statusKey(jobID string) string { return "job:status:" + jobID }

func statusFromTask(info *asynq.TaskInfo) *Status {
	status := &Status{JobID: info.ID}
	switch info.State {
	case asynq.TaskStatePending, asynq.TaskStateScheduled:
		status.State = "pending"
	case asynq.TaskStateActive:
		status.State = "running"
	case asynq.TaskStateCompleted:
		status.State = "completed"
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.State = "failed"
		status.Error = info.LastErr
	default:
		status.State = "pending"
	}
	return status
}
