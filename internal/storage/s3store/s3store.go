// Package s3store uploads media to S3-compatible object storage.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/metrics"
	"github.com/romariotrain/holograma/internal/storage/probe"
)

const backendName = "s3"

var errDisabled = errors.New("media storage backend is not configured; set S3_* to enable uploads")

type Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKeyID  string
	SecretKey    string
	UsePathStyle bool
	// PublicBaseURL is prepended to object keys when building media URLs,
	// typically a CDN in front of the bucket.
	PublicBaseURL string
	KeyPrefix     string
	PartSize      int64
}

type Storage struct {
	cfg      Config
	client   *s3.Client
	uploader *manager.Uploader
	log      zerolog.Logger
	disabled bool

	clock  func() time.Time
	keyGen func() string
}

func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Storage, error) {
	logger := log.With().Str("component", "s3-storage").Logger()
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Endpoint = strings.TrimSuffix(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.PublicBaseURL), "/")
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")

	s := &Storage{
		cfg:    cfg,
		log:    logger,
		clock:  time.Now,
		keyGen: uuid.NewString,
	}

	accessKey := strings.TrimSpace(cfg.AccessKeyID)
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if cfg.Bucket == "" || accessKey == "" || secretKey == "" {
		logger.Warn().Msg("S3_BUCKET or credentials are not set; media uploads will be disabled until configured")
		s.disabled = true
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	s.uploader = manager.NewUploader(s.client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
	})

	logger.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("s3 storage initialized")
	return s, nil
}

// Upload puts data under a dated key and returns the public URL of the object.
func (s *Storage) Upload(ctx context.Context, data []byte, mimeType string) (res models.UploadResult, err error) {
	if s.disabled {
		return models.UploadResult{}, errDisabled
	}

	start := time.Now()
	desc := probe.Describe(data, mimeType)
	defer func() {
		metrics.RecordUpload(backendName, string(desc.Kind), err, len(data), time.Since(start).Seconds())
	}()

	key := s.objectKey(desc.Ext)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(desc.MIME),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("put object failed")
		return models.UploadResult{}, fmt.Errorf("put object %s: %w", key, err)
	}

	s.log.Debug().Str("key", key).Int("bytes", len(data)).Str("mime", desc.MIME).Msg("object stored")
	return models.UploadResult{
		URL:      s.objectURL(key),
		Kind:     desc.Kind,
		Provider: backendName,
		PublicID: key,
		Width:    desc.Width,
		Height:   desc.Height,
	}, nil
}

// Delete removes an object. S3 treats deleting a missing key as success.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if s.disabled {
		return errDisabled
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	s.log.Debug().Str("key", key).Msg("object deleted")
	return nil
}

func (s *Storage) objectKey(ext string) string {
	key := s.clock().UTC().Format("2006/01/02") + "/" + s.keyGen() + ext
	if s.cfg.KeyPrefix != "" {
		key = s.cfg.KeyPrefix + "/" + key
	}
	return key
}

func (s *Storage) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case s.cfg.PublicBaseURL != "":
		return s.cfg.PublicBaseURL + "/" + escaped
	case s.cfg.Endpoint != "" && s.cfg.UsePathStyle:
		return fmt.Sprintf("%s/%s/%s", s.cfg.Endpoint, s.cfg.Bucket, escaped)
	case s.cfg.Endpoint != "":
		u, err := url.Parse(s.cfg.Endpoint)
		if err != nil {
			return fmt.Sprintf("%s/%s/%s", s.cfg.Endpoint, s.cfg.Bucket, escaped)
		}
		return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, s.cfg.Bucket, u.Host, escaped)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
	}
}

// Health performs a HeadBucket request.
func (s *Storage) Health(ctx context.Context) error {
	if s.disabled {
		return nil
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	return err
}
