package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

// Stage identifies where a table run is in its lifecycle.
type Stage string

const (
	StageExtracting         Stage = "EXTRACTING"
	StageHashing            Stage = "HASHING"
	StageDiffing            Stage = "DIFFING"
	StageEmitting           Stage = "EMITTING"
	StageCommittingBaseline Stage = "COMMITTING_BASELINE"
	StageDone               Stage = "DONE"
	StageFailed             Stage = "FAILED"
)

// RetryPolicy bounds extraction attempts with a fixed inter-attempt delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the reference pipeline: three attempts, two
// seconds apart.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}

// TableConfig describes one monitored table.
type TableConfig struct {
	Name            string
	PrimaryKey      string
	ExcludedColumns []string
}

// TableOutcome is the result of one table's run. Err is nil exactly when
// the table reached DONE.
type TableOutcome struct {
	Table      string
	Stage      Stage
	Changes    int
	Duplicates int
	Err        error
}

// TableRunner executes the per-table unit of work: extract, hash, diff,
// emit, commit baseline. Every failure is contained in the returned
// outcome; nothing propagates to other tables.
type TableRunner struct {
	extractor cdc.Extractor
	baselines cdc.BaselineStore
	emitter   *Emitter
	retry     RetryPolicy
	log       hclog.Logger
}

// NewTableRunner creates a TableRunner using the given retry policy for
// extraction.
func NewTableRunner(extractor cdc.Extractor, baselines cdc.BaselineStore, emitter *Emitter, retry RetryPolicy) *TableRunner {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy
	}
	return &TableRunner{
		extractor: extractor,
		baselines: baselines,
		emitter:   emitter,
		retry:     retry,
		log:       logging.GetLogger(),
	}
}

// Run processes one table for the given run.
//
// The baseline is only replaced after emission completes, so a persisted
// baseline always reflects a fully processed extraction. An empty
// extraction is an explicit skip: the table finishes with zero changes
// and the baseline stays untouched, so a failed upstream load can never
// read as "delete everything".
func (r *TableRunner) Run(ctx context.Context, runID string, table TableConfig) TableOutcome {
	out := TableOutcome{Table: table.Name, Stage: StageExtracting}
	changeTime := time.Now().Format(ChangeTimeLayout)

	rows, err := r.extract(ctx, table.Name)
	if err != nil {
		return r.fail(out, runID, err)
	}
	if len(rows) == 0 {
		r.log.Info("No rows extracted, skipping table", "table", table.Name, "run_id", runID)
		out.Stage = StageDone
		return out
	}

	out.Stage = StageHashing
	hasher := NewHasher(table.PrimaryKey, table.ExcludedColumns)
	current := make([]cdc.RowFingerprint, 0, len(rows))
	for _, row := range rows {
		fp, err := hasher.Fingerprint(row)
		if err != nil {
			return r.fail(out, runID, fmt.Errorf("table %s: %w", table.Name, err))
		}
		current = append(current, fp)
	}

	out.Stage = StageDiffing
	baseline, err := r.baselines.GetBaseline(ctx, table.Name)
	if err != nil {
		return r.fail(out, runID, &StorageError{Op: "baseline read", Table: table.Name, Err: err})
	}
	diff := Classify(current, baseline)
	out.Duplicates = diff.Duplicates
	if diff.Duplicates > 0 {
		r.log.Warn("Duplicate primary keys in extraction, last occurrence wins",
			"table", table.Name, "run_id", runID, "duplicates", diff.Duplicates)
	}
	r.log.Info("Classified changes", "table", table.Name, "run_id", runID,
		"inserted", len(diff.Inserted), "deleted", len(diff.Deleted),
		"updated", len(diff.Updated), "unchanged", diff.Unchanged)

	out.Stage = StageEmitting
	records := BuildRecords(table.Name, runID, changeTime, diff)
	if err := r.emitter.Emit(ctx, table.Name, runID, records); err != nil {
		return r.fail(out, runID, err)
	}

	out.Stage = StageCommittingBaseline
	if err := r.baselines.PutBaseline(ctx, table.Name, diff.Current); err != nil {
		return r.fail(out, runID, &StorageError{Op: "baseline write", Table: table.Name, Err: err})
	}

	out.Stage = StageDone
	out.Changes = diff.Total()
	return out
}

func (r *TableRunner) fail(out TableOutcome, runID string, err error) TableOutcome {
	r.log.Error("Table run failed", "table", out.Table, "run_id", runID,
		"stage", string(out.Stage), "error", err)
	out.Err = err
	out.Stage = StageFailed
	return out
}

// extract fetches the table snapshot, retrying per the policy. The delay
// between attempts respects context cancellation.
func (r *TableRunner) extract(ctx context.Context, table string) ([]cdc.Row, error) {
	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		rows, err := r.extractor.Fetch(ctx, table)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		r.log.Warn("Extraction attempt failed", "table", table, "attempt", attempt, "error", err)
		if attempt < r.retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retry.Delay):
			}
		}
	}
	return nil, &ExtractionError{Table: table, Attempts: r.retry.MaxAttempts, Err: lastErr}
}
