package s3

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config holds the bucket and credentials used for attachment uploads. Endpoint and PathStyle
// target S3 compatible stores such as MinIO.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Service uploads files to a single bucket.
type Service struct {
	client    *s3.Client
	bucket    string
	region    string
	prefix    string
	endpoint  *url.URL
	pathStyle bool
	logger    zerolog.Logger
}

// New builds the uploader. Static credentials are used when both keys are set, otherwise the
// default AWS credential chain applies.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})

	var endpoint *url.URL
	if cfg.Endpoint != "" {
		endpoint, err = url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid s3 endpoint: %w", err)
		}
	}

	return &Service{
		client:    client,
		bucket:    cfg.Bucket,
		region:    region,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		endpoint:  endpoint,
		pathStyle: cfg.PathStyle,
		logger:    logger.With().Str("component", "s3").Logger(),
	}, nil
}

// Upload stores the object under the configured prefix and returns its URL.
func (s *Service) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	key := objectKey(s.prefix, name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Info().Str("bucket", s.bucket).Str("key", key).Msg("file uploaded to s3")

	return s.objectURL(key), nil
}

func (s *Service) objectURL(key string) string {
	if s.endpoint != nil {
		base := strings.TrimRight(s.endpoint.String(), "/")
		if s.pathStyle {
			return fmt.Sprintf("%s/%s/%s", base, s.bucket, key)
		}
		return fmt.Sprintf("%s://%s.%s/%s", s.endpoint.Scheme, s.bucket, s.endpoint.Host, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func objectKey(prefix, name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
