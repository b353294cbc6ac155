package config

import "sync"

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

// StorageConfig selects the blob storage backend for uploads and job results.
type StorageConfig struct {
	Backend         string // "minio" or "s3"
	RetentionPeriod int    // hours; expired uploads and results are swept
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadEnv()
		storageConfig = &StorageConfig{
			Backend:         getEnv("STORAGE_BACKEND", "minio"),
			RetentionPeriod: getEnvInt("STORAGE_RETENTION_HOURS", 24),
		}
	})
	return storageConfig
}
