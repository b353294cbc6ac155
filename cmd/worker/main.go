package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kohlhaas/docintel/config"
	"github.com/kohlhaas/docintel/internal/service/extraction"
	"github.com/kohlhaas/docintel/pkg/logger"
	"github.com/kohlhaas/docintel/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	svc, err := extraction.GetService(log)
	if err != nil {
		log.Error("extraction service init failed", logger.Error(err))
		os.Exit(1)
	}

	rc := config.GetRedisConfig()
	w := worker.NewExtractWorker(&worker.Config{
		RedisAddr:     rc.Addr,
		RedisPassword: rc.Password,
		RedisDB:       rc.DB,
		Concurrency:   10,
	}, svc, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		log.Error("worker start failed", logger.Error(err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down worker")
	w.Stop()
	log.Info("worker stopped")
}
