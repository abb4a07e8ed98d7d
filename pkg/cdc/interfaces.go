package cdc

import "context"

// Extractor reads a full snapshot of a source table. Fetch must be safe
// to call repeatedly for the same table so the engine can retry failed
// extractions.
type Extractor interface {
	Fetch(ctx context.Context, table string) ([]Row, error)
}

// BaselineStore persists the last-known fingerprint set per table.
type BaselineStore interface {
	// GetBaseline returns the stored baseline for a table, or nil when
	// the table has never been seen. A missing baseline is not an error.
	GetBaseline(ctx context.Context, table string) ([]RowFingerprint, error)

	// PutBaseline replaces the table's baseline wholesale.
	PutBaseline(ctx context.Context, table string, fingerprints []RowFingerprint) error
}

// ChangeLogSink durably stores all change records for one table's run in
// a single append.
type ChangeLogSink interface {
	AppendChangeLog(ctx context.Context, table, runID string, records []ChangeRecord) error
}

// StreamPublisher delivers change record batches downstream. Callers keep
// each encoded batch within MaxBatchBytes.
type StreamPublisher interface {
	PublishBatch(ctx context.Context, records []ChangeRecord) error

	// MaxBatchBytes returns the largest encoded batch payload the
	// publisher accepts.
	MaxBatchBytes() int

	// Close releases any resources used by the publisher
	Close(ctx context.Context) error
}

// SummarySink persists the finished run summary.
type SummarySink interface {
	WriteSummary(ctx context.Context, summary *RunSummary) error
}
