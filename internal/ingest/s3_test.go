package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory object store implementing s3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestNewS3Store_Validation(t *testing.T) {
	valid := S3Config{
		BucketName:      "induction",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://example.r2.cloudflarestorage.com",
	}

	if _, err := NewS3Store(valid); err != nil {
		t.Fatalf("expected valid config to succeed, got %v", err)
	}

	tests := map[string]func(*S3Config){
		"missing bucket":   func(c *S3Config) { c.BucketName = "" },
		"missing key id":   func(c *S3Config) { c.AccessKeyID = "" },
		"missing secret":   func(c *S3Config) { c.SecretAccessKey = "" },
		"missing endpoint": func(c *S3Config) { c.Endpoint = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if _, err := NewS3Store(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestS3Store_SaveGetLatest(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := &S3Store{client: fake, bucket: "induction"}

	if _, err := store.Latest(ctx, "fleet"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound before any save, got %v", err)
	}

	first, second := testBatch("b-1", "fleet"), testBatch("b-2", "fleet")
	for _, b := range []*Batch{first, second} {
		if err := store.Save(ctx, b); err != nil {
			t.Fatalf("Save() returned error: %v", err)
		}
	}

	if _, ok := fake.objects["batches/fleet/b-1.json"]; !ok {
		t.Error("expected batch object under batches/fleet/b-1.json")
	}

	got, err := store.Get(ctx, "b-1")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if got.ID != "b-1" || len(got.Rows) != 2 || !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("unexpected batch %+v", got)
	}

	latest, err := store.Latest(ctx, "fleet")
	if err != nil {
		t.Fatalf("Latest() returned error: %v", err)
	}
	if latest.ID != "b-2" {
		t.Errorf("expected latest b-2, got %s", latest.ID)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() returned error: %v", err)
	}
}

func TestS3Store_SaveError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := &S3Store{client: fake, bucket: "induction"}

	if err := store.Save(context.Background(), testBatch("b-1", "fleet")); err == nil {
		t.Error("expected error when the bucket rejects writes")
	}
}
