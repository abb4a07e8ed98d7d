// Package cdc provides the public interfaces and wire types for the
// hash-based Change Data Capture (CDC) engine.
//
// The package defines the collaborator interfaces the engine depends on
// (Extractor, BaselineStore, ChangeLogSink, StreamPublisher, SummarySink)
// and the types that cross process boundaries (RowFingerprint,
// ChangeRecord, RunSummary). Downstream consumers that parse change-log
// blobs or stream messages should use these types rather than redeclaring
// the JSON layout.
//
// Key Components:
//   - Extractor: Interface for snapshot reads of a source table
//   - BaselineStore: Interface for durable row-fingerprint baselines
//   - ChangeLogSink / StreamPublisher / SummarySink: Output interfaces
//   - ChangeRecord: Type representing one detected row change
package cdc
