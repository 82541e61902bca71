package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bobmcallan/surveylens/internal/common"
)

// S3Sink publishes exports to an S3 bucket (or an S3-compatible store such as MinIO).
type S3Sink struct {
	client   *s3.Client
	bucket   string
	prefix   string
	endpoint string
	logger   *common.Logger
}

// NewS3Sink builds an S3 client from cfg. A custom endpoint switches to
// path-style addressing.
func NewS3Sink(ctx context.Context, logger *common.Logger, cfg common.S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	var client *s3.Client
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	logger.Debug().Str("bucket", cfg.Bucket).Str("endpoint", endpoint).Msg("S3Sink configured")
	return &S3Sink{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Key returns the object key used for name.
func (s *S3Sink) Key(name string) string {
	name = sanitizeName(name)
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads data and returns an s3:// location (or the endpoint URL for custom stores).
func (s *S3Sink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := s.Key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	if s.endpoint != "" {
		location = fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	s.logger.Info().Str("location", location).Int("bytes", len(data)).Msg("Export published")
	return location, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Sink) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}
