package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/motionforge/api/internal/config"
	"go.uber.org/zap"
)

// StorageClient defines the interface for the source asset store
type StorageClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// objectAPI is the part of the S3 API the asset store uses
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// R2Client stores source images in a Cloudflare R2 bucket. Providers fetch
// them through the bucket's public URL, so the bucket must be publicly readable.
type R2Client struct {
	objects   objectAPI
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewR2Client creates an R2 asset store from the r2 config section
func NewR2Client(cfg *config.R2Config, logger *zap.Logger) (*R2Client, error) {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"account_id", cfg.AccountID},
		{"access_key_id", cfg.AccessKeyID},
		{"secret_access_key", cfg.SecretAccessKey},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("r2: missing %s", strings.Join(missing, ", "))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2: load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	objects := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return newR2Client(objects, cfg.BucketName, cfg.PublicURL, logger), nil
}

func newR2Client(objects objectAPI, bucket, publicURL string, logger *zap.Logger) *R2Client {
	return &R2Client{
		objects:   objects,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With(zap.String("component", "r2"), zap.String("bucket", bucket)),
	}
}

// Upload stores the object and returns its public URL
func (c *R2Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	start := time.Now()
	_, err := c.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		c.logger.Warn("put object failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("r2 put %s: %w", key, err)
	}

	c.logger.Debug("put object",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Duration("took", time.Since(start)),
	)
	return c.GetPublicURL(key), nil
}

// Delete removes an object
func (c *R2Client) Delete(ctx context.Context, key string) error {
	_, err := c.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		c.logger.Warn("delete object failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("r2 delete %s: %w", key, err)
	}

	c.logger.Debug("deleted object", zap.String("key", key))
	return nil
}

// GetPublicURL returns the public URL providers fetch the object from
func (c *R2Client) GetPublicURL(key string) string {
	return c.publicURL + "/" + key
}

// IsConfigured reports whether uploads can produce a fetchable URL
func (c *R2Client) IsConfigured() bool {
	return c.objects != nil && c.bucket != "" && c.publicURL != ""
}
