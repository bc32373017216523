package reliability

import (
	"context"
	"fmt"
	"io"

	"github.com/aristath/autopilot/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores one object under key
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
}

// ObjectStore uploads to an S3-compatible bucket (AWS, Cloudflare R2, MinIO)
type ObjectStore struct {
	bucket   string
	uploader *manager.Uploader
}

// NewObjectStore builds an S3 client from backup settings.
// A custom endpoint switches to path-style addressing.
func NewObjectStore(ctx context.Context, cfg *config.BackupConfig) (*ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &ObjectStore{
		bucket:   cfg.Bucket,
		uploader: manager.NewUploader(client),
	}, nil
}

// Upload streams body to bucket/key
func (s *ObjectStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
