package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kmrl/induction/internal/tracing"
)

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Config holds configuration for the S3 batch store.
type S3Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// S3Store implements Store on an S3-compatible bucket.
// Batches are JSON objects under batches/{source}/{id}.json. Two small
// pointer objects hold batch keys: index/{id} for lookup by ID and
// latest/{source} for the most recent batch of a source.
type S3Store struct {
	client s3API
	bucket string
}

// NewS3Store creates a new S3-backed store with the given configuration.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &S3Store{client: client, bucket: cfg.BucketName}, nil
}

func batchKey(source, id string) string {
	return fmt.Sprintf("batches/%s/%s.json", source, id)
}

func latestKey(source string) string {
	return "latest/" + source
}

func indexKey(id string) string {
	return "index/" + id
}

// Save uploads the batch, then moves the latest pointer.
func (s *S3Store) Save(ctx context.Context, b *Batch) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemS3, s.bucket, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	key := batchKey(b.Source, b.ID)
	if err := s.put(ctx, key, "application/json", data); err != nil {
		return err
	}
	if err := s.put(ctx, indexKey(b.ID), "text/plain", []byte(key)); err != nil {
		return err
	}
	return s.put(ctx, latestKey(b.Source), "text/plain", []byte(key))
}

// Get retrieves a batch by ID.
func (s *S3Store) Get(ctx context.Context, id string) (*Batch, error) {
	key, err := s.read(ctx, indexKey(id))
	if err != nil {
		return nil, err
	}
	return s.load(ctx, strings.TrimSpace(string(key)))
}

// Latest follows the source's latest pointer.
func (s *S3Store) Latest(ctx context.Context, source string) (*Batch, error) {
	key, err := s.read(ctx, latestKey(source))
	if err != nil {
		return nil, err
	}
	return s.load(ctx, strings.TrimSpace(string(key)))
}

// HealthCheck verifies the bucket is reachable.
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func (s *S3Store) load(ctx context.Context, key string) (_ *Batch, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemS3, s.bucket, tracing.DBOperationQuery)
	defer func() { endSpan(spanError(err)) }()

	data, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", key, err)
	}
	return &b, nil
}

func (s *S3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) read(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
