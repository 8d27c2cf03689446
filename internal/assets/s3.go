package assets

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pantry/internal/logging"
	"pantry/internal/services"
)

// ObjectAPI is the subset of the S3 client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store keeps blobs in a bucket and links them through a public URL such as
// a CDN distribution in front of the bucket.
type S3Store struct {
	client    ObjectAPI
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// NewS3Store loads the default AWS credential chain for region.
func NewS3Store(ctx context.Context, bucket, region, publicURL string, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assets", "init", "load aws config", err)
	}
	return NewS3StoreWithClient(s3.NewFromConfig(awsCfg), bucket, publicURL, logger), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client ObjectAPI, bucket, publicURL string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(strings.TrimSpace(publicURL), "/"),
		logger:    logging.NewComponentLogger(logger, "assets"),
	}
}

// Upload implements Store.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", services.Wrap(services.ErrValidation, "assets", "upload", "empty asset key", nil)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", services.Wrap(services.ErrUpstream, "assets", "upload", fmt.Sprintf("put object %q", key), err)
	}
	s.logger.Debug("asset stored",
		logging.String("bucket", s.bucket),
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)
	return s.publicURL + "/" + escapeKeyPath(key), nil
}

// Delete implements Store. S3 treats deleting a missing key as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return services.Wrap(services.ErrUpstream, "assets", "delete", fmt.Sprintf("delete object %q", key), err)
	}
	s.logger.Debug("asset removed", logging.String("bucket", s.bucket), logging.String("key", key))
	return nil
}
