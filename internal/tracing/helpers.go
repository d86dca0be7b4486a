package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names used by the induction service.
const (
	TracerName      = "induction"
	StoreTracerName = "induction/store"
)

// Storage systems recorded as db.system on store spans.
const (
	SystemPostgres = "postgresql"
	SystemRedis    = "redis"
	SystemS3       = "s3"
)

// DBOperation represents the type of storage operation being traced.
type DBOperation string

const (
	// DBOperationQuery represents a read.
	DBOperationQuery DBOperation = "query"
	// DBOperationInsert represents a write of a new record.
	DBOperationInsert DBOperation = "insert"
	// DBOperationExec represents a schema or maintenance statement.
	DBOperationExec DBOperation = "exec"
)

// StartDBSpan creates a client span for a Postgres operation on table.
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, "uploaded_batches", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	return StartStoreSpan(ctx, SystemPostgres, table, operation)
}

// StartStoreSpan creates a client span for an operation against a storage
// system. target is the table, key prefix or bucket and may be empty.
func StartStoreSpan(ctx context.Context, system, target string, operation DBOperation) (context.Context, func(error)) {
	spanName := string(operation)
	if target != "" {
		spanName += " " + target
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", string(operation)),
	}
	if target != "" {
		attrs = append(attrs, attribute.String("db.target", target))
	}

	ctx, span := otel.Tracer(StoreTracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, endFunc(span)
}

// StartSpan creates an internal span for a general operation.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(TracerName).Start(ctx, name)
	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
