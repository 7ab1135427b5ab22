package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartDBSpan starts a span for database operations
func StartDBSpan(ctx context.Context, operation, table string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("DB %s %s", operation, table),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		),
	)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records metrics for a single database call
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))

	m.queryCount.Add(ctx, 1, attrs)
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.errorCount.Add(ctx, 1, attrs)
	}
}

// TraceDB wraps sql.DB with tracing and query metrics. It satisfies the
// repository query surface so it can stand in for a plain *sql.DB.
type TraceDB struct {
	db      *sql.DB
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper
func NewTraceDB(db *sql.DB) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		metrics: metrics,
	}, nil
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := startDBCallSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.finish(ctx, span, "query", start, err)

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := startDBCallSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.finish(ctx, span, "exec", start, err)

	if err == nil {
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing.
// Row errors surface on Scan, so only the call itself is measured here.
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := startDBCallSpan(ctx, "DB QueryRow", query)

	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.finish(ctx, span, "query_row", start, nil)
	span.End()
	return row
}

// BeginTx starts a transaction on the underlying connection
func (t *TraceDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	ctx, span := StartSpan(ctx, "DB BeginTx",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.system", "sqlite")),
	)
	defer span.End()

	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	return tx, err
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func startDBCallSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

func (t *TraceDB) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	duration := time.Since(start)
	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}
	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, operation, duration, err)
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// SyncMetrics holds sync engine metrics
type SyncMetrics struct {
	syncRuns          metric.Int64Counter
	mutationsPushed   metric.Int64Counter
	mutationsQueued   metric.Int64Counter
	mutationsDropped  metric.Int64Counter
	conflictsDetected metric.Int64Counter
	conflictsResolved metric.Int64Counter
	recordsApplied    metric.Int64Counter
	queueDepth        metric.Int64UpDownCounter
}

// NewSyncMetrics creates sync metrics instruments
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	syncRuns, err := meter.Int64Counter(
		"notesync.sync.runs",
		metric.WithDescription("Total number of full sync runs"),
		metric.WithUnit("{runs}"),
	)
	if err != nil {
		return nil, err
	}

	mutationsPushed, err := meter.Int64Counter(
		"notesync.mutations.pushed",
		metric.WithDescription("Total number of queued mutations confirmed by the server"),
		metric.WithUnit("{mutations}"),
	)
	if err != nil {
		return nil, err
	}

	mutationsQueued, err := meter.Int64Counter(
		"notesync.mutations.queued",
		metric.WithDescription("Total number of mutations deferred into the offline queue"),
		metric.WithUnit("{mutations}"),
	)
	if err != nil {
		return nil, err
	}

	mutationsDropped, err := meter.Int64Counter(
		"notesync.mutations.dropped",
		metric.WithDescription("Total number of mutations dropped after a permanent server rejection"),
		metric.WithUnit("{mutations}"),
	)
	if err != nil {
		return nil, err
	}

	conflictsDetected, err := meter.Int64Counter(
		"notesync.conflicts.detected",
		metric.WithDescription("Total number of conflicts recorded during pull"),
		metric.WithUnit("{conflicts}"),
	)
	if err != nil {
		return nil, err
	}

	conflictsResolved, err := meter.Int64Counter(
		"notesync.conflicts.resolved",
		metric.WithDescription("Total number of conflicts resolved"),
		metric.WithUnit("{conflicts}"),
	)
	if err != nil {
		return nil, err
	}

	recordsApplied, err := meter.Int64Counter(
		"notesync.records.applied",
		metric.WithDescription("Total number of server deltas applied locally"),
		metric.WithUnit("{records}"),
	)
	if err != nil {
		return nil, err
	}

	queueDepth, err := meter.Int64UpDownCounter(
		"notesync.queue.depth",
		metric.WithDescription("Number of mutations waiting in the offline queue"),
		metric.WithUnit("{mutations}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncRuns:          syncRuns,
		mutationsPushed:   mutationsPushed,
		mutationsQueued:   mutationsQueued,
		mutationsDropped:  mutationsDropped,
		conflictsDetected: conflictsDetected,
		conflictsResolved: conflictsResolved,
		recordsApplied:    recordsApplied,
		queueDepth:        queueDepth,
	}, nil
}

// RecordSyncRun records a completed or failed sync run
func (m *SyncMetrics) RecordSyncRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
		attribute.Int64("duration_ms", duration.Milliseconds()),
	}
	m.syncRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPush records the outcome of a pushed mutation
func (m *SyncMetrics) RecordPush(ctx context.Context, operation string, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	}
	switch outcome {
	case "synced":
		m.mutationsPushed.Add(ctx, 1, metric.WithAttributes(attrs...))
	case "dropped":
		m.mutationsDropped.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordQueued records a mutation deferred into the queue
func (m *SyncMetrics) RecordQueued(ctx context.Context, operation string) {
	m.mutationsQueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
	m.queueDepth.Add(ctx, 1)
}

// RecordConflict records a detected conflict
func (m *SyncMetrics) RecordConflict(ctx context.Context, itemType string) {
	m.conflictsDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("item_type", itemType),
	))
}

// RecordResolution records a resolved conflict
func (m *SyncMetrics) RecordResolution(ctx context.Context, choice string) {
	m.conflictsResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("choice", choice),
	))
}

// RecordApplied records server deltas applied locally
func (m *SyncMetrics) RecordApplied(ctx context.Context, count int) {
	m.recordsApplied.Add(ctx, int64(count))
}
