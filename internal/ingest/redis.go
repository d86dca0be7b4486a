package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kmrl/induction/internal/tracing"
)

// Redis key layout.
const (
	redisBatchPrefix  = "induction:batch:"
	redisLatestPrefix = "induction:latest:"
)

// DefaultRedisTTL is how long batches live in Redis when no TTL is configured.
const DefaultRedisTTL = 72 * time.Hour

// batchEncMode keeps sub-second timestamps, which the default Unix mode drops.
var batchEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// RedisStore implements Store on Redis. Batches are CBOR-encoded and expire
// after the configured TTL; each source keeps a pointer to its latest batch.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new RedisStore. A non-positive ttl uses DefaultRedisTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save writes the batch and the latest pointer in one transaction.
func (s *RedisStore) Save(ctx context.Context, b *Batch) (err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemRedis, redisBatchPrefix, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	data, err := batchEncMode.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisBatchPrefix+b.ID, data, s.ttl)
		pipe.Set(ctx, redisLatestPrefix+b.Source, b.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}
	return nil
}

// Get retrieves a batch by ID.
func (s *RedisStore) Get(ctx context.Context, id string) (_ *Batch, err error) {
	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.SystemRedis, redisBatchPrefix, tracing.DBOperationQuery)
	defer func() { endSpan(spanError(err)) }()

	data, err := s.client.Get(ctx, redisBatchPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}

	var b Batch
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	return &b, nil
}

// Latest follows the source's latest pointer.
func (s *RedisStore) Latest(ctx context.Context, source string) (*Batch, error) {
	id, err := s.client.Get(ctx, redisLatestPrefix+source).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to load latest pointer: %w", err)
	}
	return s.Get(ctx, id)
}

// HealthCheck sends a PING.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
