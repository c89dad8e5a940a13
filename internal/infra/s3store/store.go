// Package s3store keeps the issue collection as a single object in an
// S3-compatible bucket (AWS S3 or MinIO). PutObject replaces the object
// atomically, so readers see either the old or the new document.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/document"
)

// Ensure Store implements domain.Backend.
var _ domain.Backend = (*Store)(nil)

// Config holds construction parameters. Credentials fall back to the default
// AWS chain (environment, shared config, instance role) when unset.
type Config struct {
	HTTPClient      aws.HTTPClient // optional; replaces the SDK transport
	Region          string
	Bucket          string
	Key             string
	Endpoint        string // optional; custom endpoint such as MinIO
	AccessKeyID     string // optional
	SecretAccessKey string // optional
	SessionToken    string // optional
	PathStyle       bool
}

// Store implements domain.Backend on one S3 object.
type Store struct {
	client *s3.Client
	codec  *document.Codec
	bucket string
	key    string
}

// New creates a Store from cfg. A nil codec stores plain JSON.
func New(ctx context.Context, cfg Config, codec *document.Codec) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket required", domain.ErrInvalidConfig)
	}
	if cfg.Key == "" {
		cfg.Key = domain.DefaultS3Key
	}
	if cfg.Region == "" {
		cfg.Region = domain.DefaultS3Region
	}
	if codec == nil {
		codec = document.JSON()
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		// S3-compatible servers do not all accept trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Store{client: client, codec: codec, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// Location returns the object URI, e.g. "s3://bucket/issues.json".
func (s *Store) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}

// Read downloads and decodes the object. A missing object yields an empty collection.
func (s *Store) Read(ctx context.Context) (domain.Collection, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Collection{}, nil
		}
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrStorageIO, s.Location(), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrStorageIO, s.Location(), err)
	}

	issues, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Location(), err)
	}
	return issues, nil
}

// Write encodes the collection and replaces the object.
func (s *Store) Write(ctx context.Context, issues domain.Collection) error {
	data, err := s.codec.Encode(issues)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.contentType()),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", domain.ErrStorageIO, s.Location(), err)
	}
	return nil
}

func (s *Store) contentType() string {
	switch {
	case s.codec.Encrypted():
		return "application/octet-stream"
	case s.codec.Format() == domain.FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// isNotFound reports whether err means the object does not exist.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
