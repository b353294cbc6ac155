package config

import (
	"sync"
	"time"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

func GetServerConfig() *ServerConfig {
	serverOnce.Do(func() {
		loadEnv()
		serverConfig = &ServerConfig{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			MaxUploadBytes:  getEnvInt64("SERVER_MAX_UPLOAD_BYTES", 64<<20),
			ShutdownTimeout: time.Duration(getEnvInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		}
	})
	return serverConfig
}
