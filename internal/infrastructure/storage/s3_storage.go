package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/salesdocs/internal/domain/document"
	"github.com/erp/salesdocs/internal/infrastructure/config"
	"go.uber.org/zap"
)

// S3BlobStore stores artifacts in an S3-compatible bucket (AWS S3, MinIO, RustFS)
// and serves them through presigned GET URLs.
type S3BlobStore struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	keyPrefix         string
	presignExpiration time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// S3BlobStoreOption is a functional option for configuring S3BlobStore
type S3BlobStoreOption func(*S3BlobStore)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3BlobStoreOption {
	return func(s *S3BlobStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPresignExpiration overrides how long presigned URLs stay valid
func WithPresignExpiration(d time.Duration) S3BlobStoreOption {
	return func(s *S3BlobStore) {
		s.presignExpiration = d
	}
}

// NewS3BlobStore creates an S3BlobStore from configuration.
// Static credentials are used when configured; otherwise the default AWS chain applies.
func NewS3BlobStore(ctx context.Context, cfg *config.StorageConfig, opts ...S3BlobStoreOption) (*S3BlobStore, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, errors.New("storage access key id and secret access key must be set together")
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	s := &S3BlobStore{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		keyPrefix:         normalizePrefix(cfg.KeyPrefix),
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presignExpiration <= 0 {
		s.presignExpiration = 15 * time.Minute
	}
	return s, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// EnsureBucket creates the bucket if it does not exist yet
func (s *S3BlobStore) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating artifact bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store uploads the artifact and returns its object key as the file id
func (s *S3BlobStore) Store(ctx context.Context, artifact *document.Artifact) (string, error) {
	if err := validateArtifact(artifact); err != nil {
		return "", err
	}
	key := newFileID(s.keyPrefix, artifact, s.now())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(artifact.Data),
		ContentLength: aws.Int64(int64(len(artifact.Data))),
		ContentType:   aws.String(artifact.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	s.logger.Debug("Artifact uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", artifact.Size()),
	)
	return key, nil
}

// URLFor returns a presigned GET URL whose response is served inline or as an attachment
func (s *S3BlobStore) URLFor(ctx context.Context, fileID string, mode document.URLMode) (string, error) {
	if err := validateFileID(fileID); err != nil {
		return "", err
	}
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(fileID),
		ResponseContentDisposition: aws.String(ContentDisposition(fileID, mode)),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign artifact URL: %w", err)
	}
	return req.URL, nil
}

// Open streams an artifact back from the bucket
func (s *S3BlobStore) Open(ctx context.Context, fileID string) (io.ReadCloser, *document.Artifact, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	meta := &document.Artifact{
		ContentType: aws.ToString(out.ContentType),
		FileName:    SafeFileName(fileID),
	}
	return out.Body, meta, nil
}

// Bucket returns the bucket name
func (s *S3BlobStore) Bucket() string {
	return s.bucket
}

var (
	_ document.BlobStore = (*S3BlobStore)(nil)
	_ ArtifactReader     = (*S3BlobStore)(nil)
)
