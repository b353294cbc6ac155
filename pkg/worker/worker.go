// Package worker consumes queued extraction jobs and runs them through the
// engine.
package worker

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/kohlhaas/docintel/pkg/logger"
)

// Worker is a long-running job consumer.
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

// Config tunes the asynq server side.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
	Queues        map[string]int
}

type baseWorker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    logger.Logger
}

func (w *baseWorker) Stop() error {
	w.server.Stop()
	w.server.Shutdown()
	return nil
}
