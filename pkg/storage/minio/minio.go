// Package minio backs pkg/storage with a MinIO bucket.
package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/kohlhaas/docintel/config"
	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/pkg/logger"
)

type Storage struct {
	client *minio.Client
	bucket string
	log    logger.Logger
}

// NewStorage connects to MinIO and ensures the configured bucket exists.
func NewStorage(log logger.Logger) (*Storage, error) {
	mc := cfg.GetMinioConfig()
	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
		Region: mc.Region,
	})
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "create minio client")
	}

	exists, err := client.BucketExists(context.Background(), mc.BucketName)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "check bucket")
	}
	if !exists {
		err = client.MakeBucket(context.Background(), mc.BucketName,
			minio.MakeBucketOptions{Region: mc.Region})
		if err != nil {
			return nil, errdef.Wrap(errdef.KindIO, err, "create bucket")
		}
	}

	return &Storage{client: client, bucket: mc.BucketName, log: log}, nil
}

func (m *Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, -1, minio.PutObjectOptions{})
	if err != nil {
		m.log.Error("minio put failed",
			logger.String("bucket", m.bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", errdef.Wrap(errdef.KindIO, err, "store object")
	}
	return key, nil
}

func (m *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		m.log.Error("minio get failed",
			logger.String("bucket", m.bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, errdef.Wrap(errdef.KindIO, err, "get object")
	}
	return obj, nil
}

func (m *Storage) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return errdef.Wrap(errdef.KindIO, err, "delete object")
	}
	return nil
}

func (m *Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{})
	for obj := range objects {
		if obj.Err != nil {
			m.log.Error("minio list failed",
				logger.String("bucket", m.bucket),
				logger.Error(obj.Err),
			)
			continue
		}
		if obj.LastModified.Before(threshold) {
			if err := m.Delete(ctx, obj.Key); err != nil {
				m.log.Error("expired object not deleted",
					logger.String("key", obj.Key),
					logger.Error(err),
				)
				continue
			}
			m.log.Info("expired object deleted",
				logger.String("key", obj.Key),
				logger.Time("lastModified", obj.LastModified),
			)
		}
	}
	return nil
}
