package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/kohlhaas/docintel/api/handlers"
	"github.com/kohlhaas/docintel/api/routes"
	"github.com/kohlhaas/docintel/config"
	"github.com/kohlhaas/docintel/internal/service/extraction"
	"github.com/kohlhaas/docintel/pkg/logger"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	svc, err := extraction.GetService(log)
	if err != nil {
		log.Fatal("extraction service init failed", logger.Error(err))
	}

	h := handlers.NewHandlers(svc, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	serverCfg := config.GetServerConfig()
	r.MaxMultipartMemory = serverCfg.MaxUploadBytes

	srv := &http.Server{
		Addr:    serverCfg.Addr,
		Handler: r,
	}

	go func() {
		log.Info("server starting", logger.String("addr", serverCfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logger.Error(err))
	}
}
