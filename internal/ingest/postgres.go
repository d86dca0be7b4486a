package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/kmrl/induction/internal/tracing"
)

const batchesTable = "uploaded_batches"

const createBatchesTable = `
CREATE TABLE IF NOT EXISTS uploaded_batches (
	id         UUID PRIMARY KEY,
	source     TEXT NOT NULL,
	file_name  TEXT NOT NULL DEFAULT '',
	headers    TEXT[] NOT NULL,
	rows       JSONB NOT NULL,
	row_count  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_uploaded_batches_source_created
	ON uploaded_batches (source, created_at DESC);
`

// PostgresStore implements Store using the uploaded_batches table.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the batches table and its index if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createBatchesTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", batchesTable, err)
	}
	return nil
}

// Save inserts b.
func (s *PostgresStore) Save(ctx context.Context, b *Batch) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, batchesTable, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	rows, err := json.Marshal(b.Rows)
	if err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}

	query := `INSERT INTO uploaded_batches (id, source, file_name, headers, rows, row_count, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.ExecContext(ctx, query,
		b.ID, b.Source, b.FileName, pq.Array(b.Headers), rows, b.RowCount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	s.logger.Debug("stored batch",
		slog.String("batch_id", b.ID),
		slog.String("source", b.Source))
	return nil
}

// Get retrieves a batch by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (b *Batch, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, batchesTable, tracing.DBOperationQuery)
	defer func() { endSpan(spanError(err)) }()

	query := `SELECT id, source, file_name, headers, rows, row_count, created_at
	          FROM uploaded_batches WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id))
}

// Latest retrieves the most recent batch for source.
func (s *PostgresStore) Latest(ctx context.Context, source string) (b *Batch, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, batchesTable, tracing.DBOperationQuery)
	defer func() { endSpan(spanError(err)) }()

	query := `SELECT id, source, file_name, headers, rows, row_count, created_at
	          FROM uploaded_batches WHERE source = $1
	          ORDER BY created_at DESC, id DESC LIMIT 1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, source))
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Batch, error) {
	var (
		b    Batch
		rows []byte
	)
	err := row.Scan(&b.ID, &b.Source, &b.FileName, pq.Array(&b.Headers), &rows, &b.RowCount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if err := json.Unmarshal(rows, &b.Rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return &b, nil
}
