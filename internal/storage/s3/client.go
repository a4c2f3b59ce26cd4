// Package s3 implements the object store client against any S3-compatible
// service, including Tencent COS through its S3-compatible endpoint.
//
// The client is read-only: Head, Get, and List are the only calls the
// filesystem ever issues. List returns the complete key list; pagination is
// handled internally so a namespace refresh always sees a full snapshot.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cosfs/cosfs/internal/metrics"
	"github.com/cosfs/cosfs/pkg/fserr"
	"github.com/cosfs/cosfs/pkg/types"
)

// Config describes the store connection.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
}

// Client talks to one bucket of an S3-compatible store. It is safe for
// concurrent use.
type Client struct {
	api     *s3.Client
	bucket  string
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewClient builds the SDK client. Static credentials take precedence over
// the ambient AWS credential chain when both are configured.
func NewClient(ctx context.Context, cfg *Config, collector *metrics.Collector, logger *slog.Logger) (*Client, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("store bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &Client{
		api:     api,
		bucket:  cfg.Bucket,
		metrics: collector,
		logger:  logger,
	}, nil
}

// Head fetches object metadata without the body.
func (c *Client) Head(ctx context.Context, key string) (*types.ObjectMeta, error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveFetch("head", time.Since(start), 0)
	}()

	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError(err, "head", key)
	}
	return metaFromHead(key, out), nil
}

// Get downloads the complete object body.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	n := 0
	defer func() {
		c.metrics.ObserveFetch("get", time.Since(start), n)
	}()

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError(err, "get", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fserr.E(fserr.KindIOFailure, "get", key, fmt.Errorf("reading object body: %w", err))
	}
	n = len(data)
	return data, nil
}

// List returns every object key in the bucket. Keys that cannot name a
// file (empty, or trailing-slash directory markers some clients create)
// are dropped.
func (c *Client) List(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveFetch("list", time.Since(start), 0)
	}()

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, translateError(err, "list", c.bucket)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}

	c.logger.Debug("listed bucket", "bucket", c.bucket, "keys", len(keys))
	return keys, nil
}

func metaFromHead(key string, out *s3.HeadObjectOutput) *types.ObjectMeta {
	return &types.ObjectMeta{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
	}
}

// translateError maps SDK failures onto the filesystem error kinds.
// HeadObject reports a missing key as NotFound, GetObject as NoSuchKey;
// both mean the object is absent and must not be cached as such.
func translateError(err error, op, key string) error {
	if isErrorType[*s3types.NoSuchKey](err) || isErrorType[*s3types.NotFound](err) {
		return fserr.E(fserr.KindNotFound, op, key, err)
	}
	if isErrorType[*s3types.NoSuchBucket](err) {
		return fserr.E(fserr.KindNotFound, op, key, err)
	}
	return fserr.E(fserr.KindIOFailure, op, key, err)
}

func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
