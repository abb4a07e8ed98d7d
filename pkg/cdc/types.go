package cdc

import (
	"encoding/json"
	"strings"
	"time"
)

// ChangeType represents the type of change detected in a table
type ChangeType string

const (
	// Insert represents a new row being added
	Insert ChangeType = "INSERT"
	// Update represents a row being modified
	Update ChangeType = "UPDATE"
	// Delete represents a row being removed
	Delete ChangeType = "DELETE"
)

// Kind tags the scalar variants a column value can take.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

// Value is a tagged scalar column value. Exactly one of the payload
// fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

func NullValue() Value            { return Value{Kind: KindNull} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// Row maps column names to values for one extracted row. Column order is
// irrelevant; hashing imposes its own deterministic ordering.
type Row map[string]Value

// RowFingerprint is the 1:1 projection of a row after hashing. Baselines
// are sequences of these, one per primary key.
type RowFingerprint struct {
	PrimaryKey string `json:"primary_key"`
	Hash       string `json:"row_hash"`
}

// ChangeRecord represents one detected row change within a run.
// Records are immutable once created and append-only within a run.
type ChangeRecord struct {
	RunID      string     `json:"run_id"`
	Table      string     `json:"table"`
	ChangeType ChangeType `json:"change_type"`
	PrimaryKey string     `json:"primary_key"`
	RowHash    string     `json:"row_hash"`
	ChangeTime string     `json:"change_time"`
}

// TableResult is the per-table entry in a RunSummary: either a change
// count or an error string, matching the summary layout the downstream
// scheduler parses.
type TableResult struct {
	Changes int
	Err     string
}

func (r TableResult) MarshalJSON() ([]byte, error) {
	if r.Err != "" {
		return json.Marshal("Error: " + r.Err)
	}
	return json.Marshal(r.Changes)
}

func (r *TableResult) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		r.Changes = n
		r.Err = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	r.Err = strings.TrimPrefix(s, "Error: ")
	return nil
}

// RunSummary aggregates the outcome of one run across all tables. It is
// created at run start, updated once per table, and emitted at run end.
type RunSummary struct {
	RunID    string                 `json:"run_id"`
	Changes  map[string]TableResult `json:"changes"`
	Warnings map[string]string      `json:"warnings,omitempty"`
}

// NewRunSummary creates an empty summary for the given run.
func NewRunSummary(runID string) *RunSummary {
	return &RunSummary{
		RunID:   runID,
		Changes: make(map[string]TableResult),
	}
}

// SetCount records a successful table outcome.
func (s *RunSummary) SetCount(table string, changes int) {
	s.Changes[table] = TableResult{Changes: changes}
}

// SetError records a failed table outcome.
func (s *RunSummary) SetError(table, msg string) {
	s.Changes[table] = TableResult{Err: msg}
}

// AddWarning attaches a data-quality warning for a table.
func (s *RunSummary) AddWarning(table, msg string) {
	if s.Warnings == nil {
		s.Warnings = make(map[string]string)
	}
	s.Warnings[table] = msg
}

// TotalChanges sums change counts across all successfully processed tables.
func (s *RunSummary) TotalChanges() int {
	total := 0
	for _, r := range s.Changes {
		if r.Err == "" {
			total += r.Changes
		}
	}
	return total
}
