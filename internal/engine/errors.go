package engine

import "fmt"

// ExtractionError reports a source connectivity or query failure that
// survived every retry attempt. It is fatal for the affected table only.
type ExtractionError struct {
	Table    string
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for table %s after %d attempts: %v", e.Table, e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StorageError reports a baseline, change-log or summary read/write
// failure. Baseline and change-log failures are fatal for the affected
// table; the engine never proceeds past them with a stale baseline.
type StorageError struct {
	Op    string // e.g. "baseline read", "baseline write", "changelog append"
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s failed for table %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
