package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"rentradar/config"
)

// S3Archiver mirrors daily exports and listing thumbnails to
// S3-compatible object storage.
type S3Archiver struct {
	client *s3.Client
	cfg    config.ArchiveConfig
}

func NewS3Archiver(ctx context.Context, cfg config.ArchiveConfig) (*S3Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Archiver{client: client, cfg: cfg}, nil
}

// Upload streams data to the bucket under key.
func (a *S3Archiver) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// UploadBytes uploads an in-memory object, used for mirrored thumbnails.
func (a *S3Archiver) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return a.Upload(ctx, key, bytes.NewReader(data), contentType)
}

// ArchiveExport copies a finished export CSV into the bucket, keyed by
// date so a day's files group together.
func (a *S3Archiver) ArchiveExport(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open export %s: %w", path, err)
	}
	defer f.Close()

	key := fmt.Sprintf("exports/%s/%s", time.Now().Format("2006-01-02"), filepath.Base(path))
	if err := a.Upload(ctx, key, f, "text/csv"); err != nil {
		return "", err
	}
	return key, nil
}

// PublicURL renders the public URL for a stored key.
func (a *S3Archiver) PublicURL(key string) string {
	if a.cfg.Endpoint != "" && strings.Contains(a.cfg.Endpoint, "digitaloceanspaces.com") {
		host := strings.TrimPrefix(a.cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", a.cfg.Bucket, host, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.cfg.Bucket, a.cfg.Region, key)
}
