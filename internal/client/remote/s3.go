package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dkarpov/papersync/internal/common"
)

// uploadPartSize is the multipart chunk size; uploads larger than one part
// are split and sent in parallel by the manager.
const uploadPartSize = 8 * 1024 * 1024

// S3Config points the client at an S3-compatible endpoint, typically a
// self-hosted MinIO next to the sync server.
type S3Config struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3ObjectStore talks to the bucket directly with its own credentials. It is
// the deployment alternative to PresignedObjectStore for setups where the
// client is trusted with storage access.
type S3ObjectStore struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// NewS3ObjectStore builds the store from cfg.
func NewS3ObjectStore(ctx context.Context, cfg S3Config) (*S3ObjectStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("object storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})

	return &S3ObjectStore{client: client, uploader: uploader, bucket: cfg.Bucket}, nil
}

// Upload implements ObjectStore. Content above one part size goes up as a
// multipart upload.
func (s *S3ObjectStore) Upload(ctx context.Context, key string, r io.Reader, size int64, progress Progress) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   newCountingReader(r, size, progress),
	})
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", common.ErrNetwork, key, err)
	}
	return nil
}

// Download implements ObjectStore.
func (s *S3ObjectStore) Download(ctx context.Context, key string, w io.Writer, progress Progress) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%w: object %s", common.ErrNotFound, key)
		}
		return fmt.Errorf("%w: download %s: %v", common.ErrNetwork, key, err)
	}
	defer out.Body.Close()

	total := int64(-1)
	if out.ContentLength != nil {
		total = *out.ContentLength
	}
	if _, err := io.Copy(newCountingWriter(w, total, progress), out.Body); err != nil {
		return fmt.Errorf("%w: download %s: %v", common.ErrNetwork, key, err)
	}
	return nil
}

// Delete implements ObjectStore.
func (s *S3ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", common.ErrNetwork, key, err)
	}
	return nil
}
