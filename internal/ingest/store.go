package ingest

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBatchNotFound is returned when a batch ID or source has no stored batch.
var ErrBatchNotFound = errors.New("batch not found")

// Batch is one stored upload. Rows holds at most the configured row limit;
// RowCount is the number of data rows received before truncation.
type Batch struct {
	ID        string     `json:"id" cbor:"id"`
	Source    string     `json:"source" cbor:"source"`
	FileName  string     `json:"file_name" cbor:"file_name"`
	Headers   []string   `json:"headers" cbor:"headers"`
	Rows      [][]string `json:"rows" cbor:"rows"`
	RowCount  int        `json:"row_count" cbor:"row_count"`
	CreatedAt time.Time  `json:"created_at" cbor:"created_at"`
}

// Store persists uploaded batches.
type Store interface {
	// Save stores b under b.ID and makes it the latest batch for b.Source.
	Save(ctx context.Context, b *Batch) error

	// Get returns the batch with the given ID or ErrBatchNotFound.
	Get(ctx context.Context, id string) (*Batch, error)

	// Latest returns the most recently saved batch for source or ErrBatchNotFound.
	Latest(ctx context.Context, source string) (*Batch, error)
}

// InMemoryStore implements Store with in-memory storage.
// This is the default backend and is useful for testing and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[string]*Batch
	latest  map[string]string
}

// NewInMemoryStore creates a new in-memory batch store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		batches: make(map[string]*Batch),
		latest:  make(map[string]string),
	}
}

// Save stores a copy of b.
func (s *InMemoryStore) Save(ctx context.Context, b *Batch) error {
	if b == nil || b.ID == "" {
		return errors.New("batch ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[b.ID] = copyBatch(b)
	s.latest[b.Source] = b.ID
	return nil
}

// Get retrieves a batch by ID.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return copyBatch(b), nil
}

// Latest retrieves the most recent batch for source.
func (s *InMemoryStore) Latest(ctx context.Context, source string) (*Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.latest[source]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return copyBatch(s.batches[id]), nil
}

// HealthCheck always succeeds.
func (s *InMemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

// spanError hides ErrBatchNotFound from store spans; a miss is not a failure.
func spanError(err error) error {
	if errors.Is(err, ErrBatchNotFound) {
		return nil
	}
	return err
}

func copyBatch(b *Batch) *Batch {
	out := *b
	out.Headers = append([]string(nil), b.Headers...)
	out.Rows = make([][]string, len(b.Rows))
	for i, r := range b.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return &out
}
