package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

// Orchestrator drives one full run across all configured tables,
// aggregating per-table outcomes into a RunSummary.
type Orchestrator struct {
	runner  *TableRunner
	summary cdc.SummarySink
	tables  []TableConfig
	log     hclog.Logger
}

// NewOrchestrator creates an Orchestrator. The summary sink may be nil;
// the summary is still returned to the caller.
func NewOrchestrator(runner *TableRunner, summarySink cdc.SummarySink, tables []TableConfig) *Orchestrator {
	return &Orchestrator{
		runner:  runner,
		summary: summarySink,
		tables:  tables,
		log:     logging.GetLogger(),
	}
}

// NewRunID derives a monotonic run identifier from the run start time.
func NewRunID(start time.Time) string {
	return strconv.FormatInt(start.Unix(), 10)
}

// Run processes every configured table sequentially under one run_id.
// A table's failure is recorded in the summary and never aborts the
// remaining tables; the run always completes with a full summary, even
// when every table failed.
func (o *Orchestrator) Run(ctx context.Context) *cdc.RunSummary {
	start := time.Now()
	runID := NewRunID(start)
	summary := cdc.NewRunSummary(runID)

	o.log.Info("Starting CDC run", "run_id", runID, "tables", len(o.tables))
	for _, table := range o.tables {
		o.log.Info("Checking table", "table", table.Name, "run_id", runID)
		out := o.runner.Run(ctx, runID, table)
		if out.Err != nil {
			summary.SetError(table.Name, out.Err.Error())
		} else {
			summary.SetCount(table.Name, out.Changes)
		}
		if out.Duplicates > 0 {
			summary.AddWarning(table.Name,
				fmt.Sprintf("%d duplicate primary keys, last occurrence used", out.Duplicates))
		}
	}

	if o.summary != nil {
		if err := o.summary.WriteSummary(ctx, summary); err != nil {
			o.log.Error("Failed to persist run summary", "run_id", runID, "error", err)
		}
	}

	o.log.Info("CDC run complete", "run_id", runID,
		"changes", summary.TotalChanges(), "elapsed", time.Since(start))
	return summary
}
