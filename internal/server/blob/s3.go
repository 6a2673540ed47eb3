// Package blob stores user-supplied binary objects (avatars) in S3 or an
// S3-compatible service such as MinIO.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

var (
	ErrInvalidConfig  = errors.New("blob: bucket and region are required")
	ErrInvalidKey     = errors.New("blob: invalid object key")
	ErrNotFound       = errors.New("blob: object not found")
	ErrAccessDenied   = errors.New("blob: access denied")
	ErrUnavailable    = errors.New("blob: service unavailable")
	ErrOperationAbort = errors.New("blob: operation cancelled or timed out")
)

// S3Client is the subset of *s3.Client the uploader calls.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config describes the bucket. AccessKeyID/SecretKey map to the MinIO root
// user and password in development.
type Config struct {
	Region         string
	AccessKeyID    string
	SecretKey      string
	Bucket         string
	Endpoint       string
	BaseURL        string
	ForcePathStyle bool
}

// Object is a stored blob: ID is the provider key, URL where it is served.
type Object struct {
	ID  string
	URL string
}

// Uploader writes and removes objects in one bucket. It is safe for
// concurrent use.
type Uploader struct {
	client  S3Client
	bucket  string
	baseURL string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) S3Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3Uploader loads AWS configuration for cfg and builds an Uploader.
func NewS3Uploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewUploader(client, cfg), nil
}

// NewUploader wraps an existing client.
func NewUploader(client S3Client, cfg Config) *Uploader {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
	}
}

func validKey(key string) bool {
	return key != "" && !strings.HasPrefix(key, "/") && !strings.Contains(key, "..")
}

// URL returns the public address of key.
func (u *Uploader) URL(key string) string {
	return u.baseURL + key
}

// Upload stores body under key.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (*Object, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, classifyS3Error(err, "upload")
	}

	return &Object{ID: key, URL: u.URL(key)}, nil
}

// Delete removes key. Deleting a missing object is not an error.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if err = classifyS3Error(err, "delete"); errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func classifyS3Error(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrOperationAbort, operation, err)
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied":
			return fmt.Errorf("%w: %s", ErrAccessDenied, operation)
		case "SlowDown", "ServiceUnavailable", "RequestTimeout":
			return fmt.Errorf("%w: %s", ErrUnavailable, operation)
		default:
			return fmt.Errorf("blob: %s failed (code: %s): %w", operation, apiErr.ErrorCode(), err)
		}
	}

	return fmt.Errorf("blob: %s failed: %w", operation, err)
}
