// Package s3 backs pkg/storage with an AWS S3 bucket.
package s3

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/kohlhaas/docintel/config"
	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/pkg/logger"
)

type Storage struct {
	client *s3.Client
	bucket string
	log    logger.Logger
}

// NewStorage connects to S3 and verifies the configured bucket is reachable.
func NewStorage(log logger.Logger) (*Storage, error) {
	sc := cfg.GetS3Config()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(sc.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			sc.AccessKey,
			sc.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg)
	_, err = client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(sc.BucketName),
	})
	if err != nil {
		return nil, errdef.Wrap(errdef.KindIO, err, "verify bucket")
	}

	return &Storage{client: client, bucket: sc.BucketName, log: log}, nil
}

func (s *Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	})
	if err != nil {
		s.log.Error("s3 put failed",
			logger.String("bucket", s.bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", errdef.Wrap(errdef.KindIO, err, "store object")
	}
	return key, nil
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error("s3 get failed",
			logger.String("bucket", s.bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, errdef.Wrap(errdef.KindIO, err, "get object")
	}
	return result.Body, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errdef.Wrap(errdef.KindIO, err, "delete object")
	}
	return nil
}

func (s *Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errdef.Wrap(errdef.KindIO, err, "list objects")
		}
		for _, obj := range page.Contents {
			if obj.LastModified.Before(threshold) {
				if err := s.Delete(ctx, *obj.Key); err != nil {
					s.log.Error("expired object not deleted",
						logger.String("key", *obj.Key),
						logger.Error(err),
					)
					continue
				}
				s.log.Info("expired object deleted",
					logger.String("key", *obj.Key),
					logger.Time("lastModified", *obj.LastModified),
				)
			}
		}
	}
	return nil
}
