// Package s3 implements S3-based content storage for data objects.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sdu-escience/gridgate/internal/logger"
	"github.com/sdu-escience/gridgate/pkg/content"
)

// S3ContentStore implements content.Store using Amazon S3 or S3-compatible
// storage (MinIO, Localstack, ...).
//
// Key Design:
// The ContentID is used directly as the object key, behind an optional
// prefix. Whole blobs are uploaded with a single PutObject since the grid
// engine buffers a data object until its writer is closed.
//
// Thread Safety:
// This implementation is safe for concurrent use by multiple goroutines.
type S3ContentStore struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	metrics   S3Metrics
}

// S3ContentStoreConfig contains configuration for S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client *s3.Client

	// Bucket is the S3 bucket name. It must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "gridgate/" results in keys like "gridgate/<content id>"
	KeyPrefix string

	// Metrics is optional; nil disables metrics collection
	Metrics S3Metrics
}

// ClientConfig describes how to reach an S3 endpoint.
type ClientConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// NewClient builds an S3 client. A custom endpoint switches to path-style
// addressing for compatibility with MinIO and Localstack. Without static
// credentials the default AWS credential chain is used.
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	if cfg.Region != "" {
		configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			// S3-compatible servers often lag behind on flexible checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	}), nil
}

// NewS3ContentStore creates a new S3-based content store and verifies bucket
// access.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: S3 configuration
//
// Returns:
//   - *S3ContentStore: Initialized S3 content store
//   - error: Returns error if bucket access fails or context is cancelled
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	var metrics S3Metrics = noopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	logger.Info("S3 content store initialized: bucket=%s, prefix=%s", cfg.Bucket, cfg.KeyPrefix)

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		metrics:   metrics,
	}, nil
}

var _ content.Store = (*S3ContentStore)(nil)

func (s *S3ContentStore) getObjectKey(id content.ContentID) string {
	return s.keyPrefix + string(id)
}

// isNotFound recognizes both GetObject (NoSuchKey) and HeadObject (NotFound)
// misses.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// ReadContent downloads the object and returns a reader over its body. The
// caller is responsible for closing the returned ReadCloser.
func (s *S3ContentStore) ReadContent(ctx context.Context, id content.ContentID) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation(OpGet, time.Since(start), err)
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
			return nil, err
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return &countingBody{ReadCloser: result.Body, metrics: s.metrics}, nil
}

// WriteContent uploads data as the whole object.
func (s *S3ContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation(OpPut, time.Since(start), err)
		if err == nil {
			s.metrics.RecordBytes(OpPut, int64(len(data)))
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.getObjectKey(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to write object to S3: %w", err)
	}
	return nil
}

// DeleteContent removes the object. S3 treats deleting an absent key as
// success.
func (s *S3ContentStore) DeleteContent(ctx context.Context, id content.ContentID) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation(OpDelete, time.Since(start), err)
	}()

	if err = ctx.Err(); err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// ContentExists performs a HEAD request without downloading the object.
func (s *S3ContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.head(ctx, id)
	if err != nil {
		if errors.Is(err, content.ErrContentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetContentSize performs a HEAD request and reports the object length.
func (s *S3ContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.head(ctx, id)
	if err != nil {
		return 0, err
	}
	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", id)
	}
	return uint64(*result.ContentLength), nil
}

func (s *S3ContentStore) head(ctx context.Context, id content.ContentID) (result *s3.HeadObjectOutput, err error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveOperation(OpHead, time.Since(start), err)
	}()

	result, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.getObjectKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}
	return result, nil
}
