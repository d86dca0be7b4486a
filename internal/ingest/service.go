package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kmrl/induction/internal/table"
	"github.com/kmrl/induction/internal/tracing"
)

// Validation errors
var (
	ErrInvalidSource = errors.New("invalid source label")
	ErrEmptyUpload   = errors.New("upload contains no header row")
)

// Defaults applied when ServiceConfig leaves a limit unset.
const (
	DefaultMaxRows    = 1000
	DefaultSampleRows = 3
	MaxSourceLength   = 64
)

// Warnings attached to results that were not persisted.
const (
	WarningStoragePending = "Data stored locally, backend storage pending"
	WarningNoBackend      = "Backend unavailable, processed locally"
)

// Request is one upload of delimited text.
type Request struct {
	Source   string `json:"source"`
	FileName string `json:"fileName"`
	Text     string `json:"text"`
}

// Result describes what happened to an upload.
type Result struct {
	UploadID  string   `json:"uploadId,omitempty"`
	Message   string   `json:"message"`
	Headers   []string `json:"headers"`
	Sample    []Record `json:"sample"`
	RowCount  int      `json:"rowCount"`
	Forwarded int      `json:"forwarded"`
	Warning   string   `json:"warning,omitempty"`
}

// ServiceConfig holds configuration for the ingestion service.
type ServiceConfig struct {
	MaxRows    int // Rows kept per batch. Default: 1000
	SampleRows int // Rows echoed back in the result. Default: 3
}

// Service parses uploads and forwards bounded batches to a Store.
type Service struct {
	store      Store
	metrics    *Metrics
	logger     *slog.Logger
	maxRows    int
	sampleRows int
	newID      func() string
	timeNow    func() time.Time // For testability
}

// NewService creates a new ingestion service. A nil store processes uploads
// without persisting them; nil metrics disables instrumentation.
func NewService(store Store, cfg ServiceConfig, metrics *Metrics, logger *slog.Logger) *Service {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.SampleRows <= 0 {
		cfg.SampleRows = DefaultSampleRows
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		metrics:    metrics,
		logger:     logger,
		maxRows:    cfg.MaxRows,
		sampleRows: cfg.SampleRows,
		newID:      func() string { return uuid.New().String() },
		timeNow:    time.Now,
	}
}

// ValidateSource checks that a source label is usable as a storage key
// component: 1 to 64 characters from [A-Za-z0-9_-].
func ValidateSource(source string) error {
	if source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidSource)
	}
	if len(source) > MaxSourceLength {
		return fmt.Errorf("%w: source exceeds %d characters", ErrInvalidSource, MaxSourceLength)
	}
	for _, r := range source {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return fmt.Errorf("%w: %q contains %q", ErrInvalidSource, source, r)
	}
	return nil
}

// Ingest parses req.Text, truncates it to the row limit and stores it.
//
// A storage failure does not fail the upload: the result carries no
// UploadID, a "storage pending" message and a warning, and the error is
// logged. Only invalid input returns an error.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateSource(req.Source); err != nil {
		return nil, err
	}

	_, endParse := tracing.StartSpan(ctx, "ingest.parse")
	tbl := table.Parse(req.Text)
	endParse(nil)

	if blankHeaders(tbl.Headers) {
		return nil, ErrEmptyUpload
	}

	headers := DedupeHeaders(tbl.Headers)
	received := len(tbl.Rows)
	kept := tbl.Rows
	if len(kept) > s.maxRows {
		kept = kept[:s.maxRows]
	}
	if s.metrics != nil {
		s.metrics.AddRows(received, received-len(kept))
	}

	sample := kept
	if len(sample) > s.sampleRows {
		sample = sample[:s.sampleRows]
	}

	result := &Result{
		Headers:   headers,
		Sample:    ToRecords(tbl.Headers, sample),
		RowCount:  received,
		Forwarded: len(kept),
	}

	if s.store == nil {
		result.Message = describe("Received", received, req) + " (local processing)."
		result.Warning = WarningNoBackend
		s.count(req.Source, OutcomeLocal)
		return result, nil
	}

	batch := &Batch{
		ID:        s.newID(),
		Source:    req.Source,
		FileName:  req.FileName,
		Headers:   tbl.Headers,
		Rows:      kept,
		RowCount:  received,
		CreatedAt: s.timeNow().UTC(),
	}

	if err := s.save(ctx, batch); err != nil {
		s.logger.WarnContext(ctx, "batch storage failed",
			slog.String("source", req.Source),
			slog.String("file_name", req.FileName),
			slog.Int("rows", received),
			slog.String("error", err.Error()))
		result.Message = describe("Received", received, req) + " (storage pending)."
		result.Warning = WarningStoragePending
		s.count(req.Source, OutcomePending)
		return result, nil
	}

	s.logger.InfoContext(ctx, "batch stored",
		slog.String("batch_id", batch.ID),
		slog.String("source", req.Source),
		slog.Int("rows", received),
		slog.Int("forwarded", len(kept)))

	result.UploadID = batch.ID
	result.Message = describe("Stored", received, req) + "."
	s.count(req.Source, OutcomeStored)
	return result, nil
}

func (s *Service) save(ctx context.Context, b *Batch) (err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "ingest.store")
	defer func() { endSpan(err) }()
	tracing.SetAttributes(ctx,
		attribute.String("ingest.source", b.Source),
		attribute.Int("ingest.rows", len(b.Rows)))

	start := s.timeNow()
	err = s.store.Save(ctx, b)
	if s.metrics != nil {
		s.metrics.ObserveStoreDuration(s.timeNow().Sub(start).Seconds())
	}
	return err
}

func (s *Service) count(source, outcome string) {
	if s.metrics != nil {
		s.metrics.IncBatch(source, outcome)
	}
}

func blankHeaders(headers []string) bool {
	for _, h := range headers {
		if h != "" {
			return false
		}
	}
	return true
}

// describe renders "<verb> N rows for SOURCE[ from FILE]".
func describe(verb string, rows int, req Request) string {
	msg := fmt.Sprintf("%s %d rows for %s", verb, rows, req.Source)
	if req.FileName != "" {
		msg += " from " + req.FileName
	}
	return msg
}
