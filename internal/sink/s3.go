package sink

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"cx-go/internal/config"
	"cx-go/internal/cx"
)

// S3Scheme prefixes export destinations that are written to S3.
const S3Scheme = "s3://"

// uploader is the subset of manager.Uploader used by S3Sink.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads artifacts to S3 destinations of the form s3://bucket/prefix.
// Large artifacts are uploaded in parts.
type S3Sink struct {
	uploader uploader
	logger   cx.Logger
}

// NewS3Sink builds an S3 client from cfg. Static credentials are used when
// both key fields are set; otherwise the default AWS credential chain applies.
func NewS3Sink(ctx context.Context, cfg config.S3Config, logger cx.Logger) (*S3Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3SinkWithUploader(manager.NewUploader(client), logger), nil
}

func newS3SinkWithUploader(u uploader, logger cx.Logger) *S3Sink {
	return &S3Sink{uploader: u, logger: logger}
}

// ParseS3Destination splits s3://bucket/prefix into bucket and prefix.
func ParseS3Destination(destination string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(destination, S3Scheme) {
		return "", "", fmt.Errorf("not an s3 destination: %s", destination)
	}
	rest := strings.TrimPrefix(destination, S3Scheme)
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 destination has no bucket: %s", destination)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

// PutArtifact uploads the artifact and returns its s3:// location.
func (s *S3Sink) PutArtifact(ctx context.Context, destination, name string, r io.Reader, size int64) (string, error) {
	bucket, prefix, err := ParseS3Destination(destination)
	if err != nil {
		return "", err
	}
	key := name
	if prefix != "" {
		key = path.Join(prefix, name)
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType(name)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading s3://%s/%s: %w", bucket, key, err)
	}

	location := S3Scheme + bucket + "/" + key
	s.logger.Debug("artifact uploaded", "location", location, "bytes", size)
	return location, nil
}

func (s *S3Sink) ValidateSetup() error {
	if s.uploader == nil {
		return fmt.Errorf("s3 sink has no client")
	}
	return nil
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

var _ cx.Sink = (*S3Sink)(nil)
