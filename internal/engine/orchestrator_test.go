package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

func TestNewRunID(t *testing.T) {
	if got := NewRunID(time.Unix(1700000000, 0)); got != "1700000000" {
		t.Errorf("expected 1700000000, got %s", got)
	}
	earlier := NewRunID(time.Unix(1700000000, 0))
	later := NewRunID(time.Unix(1700000300, 0))
	if later <= earlier {
		t.Error("run IDs are not monotonic across run starts")
	}
}

func TestOrchestratorIsolatesTableFailures(t *testing.T) {
	// "episodes" never extracts; "prescriptions" is healthy.
	extractor := &fakeExtractor{
		rows: map[string][]cdc.Row{
			"prescriptions": {testRow("1", nil), testRow("2", nil)},
		},
		failures: map[string]int{"episodes": 99},
	}
	store := newFakeBaselineStore()
	sink := &fakeSummarySink{}
	runner := NewTableRunner(extractor, store, NewEmitter(&fakeLogSink{}, nil), testRetry)

	tables := []TableConfig{
		{Name: "episodes", PrimaryKey: "id"},
		{Name: "prescriptions", PrimaryKey: "id"},
	}
	summary := NewOrchestrator(runner, sink, tables).Run(context.Background())

	if summary == nil {
		t.Fatal("run must always produce a summary")
	}
	episodes := summary.Changes["episodes"]
	if episodes.Err == "" || !strings.Contains(episodes.Err, "extraction failed") {
		t.Errorf("expected extraction error string for episodes, got %+v", episodes)
	}
	prescriptions := summary.Changes["prescriptions"]
	if prescriptions.Err != "" || prescriptions.Changes != 2 {
		t.Errorf("expected 2 changes for prescriptions, got %+v", prescriptions)
	}
	if sink.written != summary {
		t.Error("summary was not persisted")
	}
}

func TestOrchestratorRecordsDuplicateWarnings(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]cdc.Row{
		"episodes": {testRow("1", nil), testRow("1", nil)},
	}}
	runner := NewTableRunner(extractor, newFakeBaselineStore(), NewEmitter(&fakeLogSink{}, nil), testRetry)

	summary := NewOrchestrator(runner, nil, []TableConfig{{Name: "episodes", PrimaryKey: "id"}}).
		Run(context.Background())

	warning, ok := summary.Warnings["episodes"]
	if !ok || !strings.Contains(warning, "duplicate primary keys") {
		t.Errorf("expected duplicate warning, got %v", summary.Warnings)
	}
}

func TestOrchestratorCompletesWhenSummarySinkFails(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]cdc.Row{"episodes": {testRow("1", nil)}}}
	runner := NewTableRunner(extractor, newFakeBaselineStore(), NewEmitter(&fakeLogSink{}, nil), testRetry)
	sink := &fakeSummarySink{err: errTestStorage}

	summary := NewOrchestrator(runner, sink, []TableConfig{{Name: "episodes", PrimaryKey: "id"}}).
		Run(context.Background())

	if summary == nil {
		t.Fatal("summary must still be returned when the sink fails")
	}
	if summary.Changes["episodes"].Changes != 1 {
		t.Errorf("unexpected summary contents: %+v", summary.Changes)
	}
}

func TestOrchestratorSharesRunIDAcrossTables(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]cdc.Row{
		"episodes":      {testRow("1", nil)},
		"prescriptions": {testRow("1", nil)},
	}}
	logSink := &fakeLogSink{}
	runner := NewTableRunner(extractor, newFakeBaselineStore(), NewEmitter(logSink, nil), testRetry)

	tables := []TableConfig{
		{Name: "episodes", PrimaryKey: "id"},
		{Name: "prescriptions", PrimaryKey: "id"},
	}
	summary := NewOrchestrator(runner, nil, tables).Run(context.Background())

	if len(logSink.appends) != 2 {
		t.Fatalf("expected 2 change log appends, got %d", len(logSink.appends))
	}
	for _, call := range logSink.appends {
		if call.runID != summary.RunID {
			t.Errorf("append used run_id %s, summary has %s", call.runID, summary.RunID)
		}
	}
}
