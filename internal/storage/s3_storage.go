package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// s3Storage implements MediaStore on an S3 bucket.
type s3Storage struct {
	bucket   string
	baseURL  string
	s3Client *s3.Client
	logger   *zap.Logger
}

// NewS3Storage creates an S3 backed media store.
func NewS3Storage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (MediaStore, error) {
	opts := []func(*aws_config.LoadOptions) error{
		aws_config.WithRegion(cfg.AwsRegion),
	}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AwsEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AwsEndpointURL)
			o.UsePathStyle = true
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	baseURL := cfg.ImageBaseURL
	if baseURL == "" {
		if cfg.AwsEndpointURL != "" {
			baseURL = fmt.Sprintf("%s/%s", cfg.AwsEndpointURL, cfg.AwsS3Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AwsS3Bucket, cfg.AwsRegion)
		}
	}

	return &s3Storage{
		bucket:   cfg.AwsS3Bucket,
		baseURL:  baseURL,
		s3Client: s3Client,
		logger:   logger,
	}, nil
}

func (s *s3Storage) Upload(ctx context.Context, file Upload, folder string) (models.MediaRef, error) {
	key := objectKey(folder, file.FileName, file.ContentType)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(file.Data),
		ContentLength: aws.Int64(int64(len(file.Data))),
		ContentType:   aws.String(file.ContentType),
	})
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: put object %s: %v", ErrUpload, key, err)
	}
	s.logger.Debug("Uploaded media", zap.String("key", key), zap.Int("size", len(file.Data)))
	return models.MediaRef{FileName: key, URL: s.baseURL + "/" + key}, nil
}

func (s *s3Storage) Release(ctx context.Context, fileName string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", fileName, err)
	}
	return nil
}
