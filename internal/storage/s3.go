// Package storage issues time-limited presigned URLs against an
// S3-compatible blob store. The server never proxies file bytes; uploads
// and downloads go directly to storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sellforge/sellforge/internal/errs"
)

// DownloadURLValidity is the fixed validity window for presigned GET URLs.
const DownloadURLValidity = 3600 * time.Second

// Config holds S3 connection configuration. Endpoint is empty for AWS;
// set it for MinIO, Wasabi, and other S3-compatible services.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("storage: bucket is required")
	}
	if c.AccessKeyID == "" {
		return errors.New("storage: access key ID is required")
	}
	if c.SecretAccessKey == "" {
		return errors.New("storage: secret access key is required")
	}
	return nil
}

// S3Store presigns upload and download URLs for one bucket.
type S3Store struct {
	presign *s3.PresignClient
	bucket  string
	logger  zerolog.Logger
}

// New creates an S3Store from the given configuration.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint := cfg.Endpoint
		if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
			endpoint = u.Host
		}
		endpointURL := fmt.Sprintf("%s://%s", scheme, endpoint)
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Store{
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		logger:  logger.With().Str("component", "storage").Logger(),
	}, nil
}

// ObjectKey builds the storage key for a product file. A random nonce
// keeps re-uploads of the same file name from colliding.
func ObjectKey(productID int64, fileName string) string {
	return fmt.Sprintf("products/%d/%s-%s", productID, uuid.NewString(), path.Base(fileName))
}

// PresignGet returns a time-limited download URL for the given key.
// Each call mints a fresh URL; nothing is cached.
func (s *S3Store) PresignGet(ctx context.Context, key string, validity time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", errs.Dependencyf("presign download for %s: %v", key, err)
	}
	return req.URL, nil
}

// PresignPut returns a time-limited upload URL for the given key. The
// caller performs the actual upload directly against storage.
func (s *S3Store) PresignPut(ctx context.Context, key string, validity time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return "", errs.Dependencyf("presign upload for %s: %v", key, err)
	}
	return req.URL, nil
}
