package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// minioStorage implements MediaStore on a MinIO (or any S3 compatible) bucket.
type minioStorage struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

// NewMinioStorage connects to MinIO and makes sure the bucket exists.
func NewMinioStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (MediaStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client for %s: %w", cfg.MinioEndpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("Created media bucket", zap.String("bucket", cfg.MinioBucket))
	}

	baseURL := cfg.ImageBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/%s", client.EndpointURL().String(), cfg.MinioBucket)
	}
	return &minioStorage{client: client, bucket: cfg.MinioBucket, baseURL: baseURL, logger: logger}, nil
}

func (m *minioStorage) Upload(ctx context.Context, file Upload, folder string) (models.MediaRef, error) {
	key := objectKey(folder, file.FileName, file.ContentType)
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(file.Data), int64(len(file.Data)),
		minio.PutObjectOptions{ContentType: file.ContentType})
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: put object %s: %v", ErrUpload, key, err)
	}
	m.logger.Debug("Uploaded media", zap.String("key", info.Key), zap.Int64("size", info.Size))
	return models.MediaRef{FileName: key, URL: m.baseURL + "/" + key}, nil
}

func (m *minioStorage) Release(ctx context.Context, fileName string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, fileName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", fileName, err)
	}
	return nil
}
