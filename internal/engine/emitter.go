package engine

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

// ChangeTimeLayout is the wall-clock format stamped on every change
// record of a run.
const ChangeTimeLayout = "2006-01-02 15:04:05"

// Emitter converts classified diffs into ordered change records and
// delivers them to the durable change log and, best-effort, to the
// stream publisher.
type Emitter struct {
	logSink   cdc.ChangeLogSink
	publisher cdc.StreamPublisher
	log       hclog.Logger
}

// NewEmitter creates an Emitter. The publisher may be nil, in which case
// records only reach the durable change log.
func NewEmitter(logSink cdc.ChangeLogSink, publisher cdc.StreamPublisher) *Emitter {
	return &Emitter{
		logSink:   logSink,
		publisher: publisher,
		log:       logging.GetLogger(),
	}
}

// BuildRecords orders a diff into its change records: INSERT, then
// DELETE, then UPDATE, each group sorted by primary key ascending, so a
// run's output is deterministic for the same diff.
func BuildRecords(table, runID, changeTime string, d Diff) []cdc.ChangeRecord {
	records := make([]cdc.ChangeRecord, 0, d.Total())
	appendGroup := func(changeType cdc.ChangeType, fps []cdc.RowFingerprint) {
		for _, fp := range fps {
			records = append(records, cdc.ChangeRecord{
				RunID:      runID,
				Table:      table,
				ChangeType: changeType,
				PrimaryKey: fp.PrimaryKey,
				RowHash:    fp.Hash,
				ChangeTime: changeTime,
			})
		}
	}
	appendGroup(cdc.Insert, d.Inserted)
	appendGroup(cdc.Delete, d.Deleted)
	appendGroup(cdc.Update, d.Updated)
	return records
}

// Emit writes all records for one table's run to the change log in a
// single append, then streams them in size-bounded batches. With zero
// records neither sink is touched. A change-log failure fails the table;
// stream failures do not.
func (e *Emitter) Emit(ctx context.Context, table, runID string, records []cdc.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}

	if err := e.logSink.AppendChangeLog(ctx, table, runID, records); err != nil {
		return &StorageError{Op: "changelog append", Table: table, Err: err}
	}
	e.log.Info("Change log written", "table", table, "run_id", runID, "records", len(records))

	e.streamRecords(ctx, table, runID, records)
	return nil
}

// streamRecords publishes records in batches that respect the publisher's
// payload limit: when appending a record would overflow the open batch,
// the batch is flushed first; the final partial batch always flushes.
// Delivery is best-effort relative to the already-durable change log, so
// publish failures are logged rather than returned.
func (e *Emitter) streamRecords(ctx context.Context, table, runID string, records []cdc.ChangeRecord) {
	if e.publisher == nil {
		return
	}
	maxBytes := e.publisher.MaxBatchBytes()

	var batch []cdc.ChangeRecord
	batchBytes := 0
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := e.publisher.PublishBatch(ctx, batch); err != nil {
			e.log.Error("Stream publish failed, change log already durable",
				"table", table, "run_id", runID, "records", len(batch), "error", err)
		}
		batch = nil
		batchBytes = 0
	}

	for _, record := range records {
		size := recordSize(record)
		if len(batch) > 0 && batchBytes+size > maxBytes {
			flush()
		}
		batch = append(batch, record)
		batchBytes += size
	}
	flush()
}

// recordSize estimates a record's share of an encoded batch payload.
func recordSize(record cdc.ChangeRecord) int {
	data, _ := json.Marshal(record)
	return len(data) + 1
}
