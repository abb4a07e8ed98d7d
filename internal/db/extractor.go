package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/maplewood-dwh/snapcdc/pkg/cdc"
)

// SnapshotExtractor reads a full snapshot of a table, the comparison
// input for hash-based change detection. Reads are
// snapshot-at-extraction-time; no transactional consistency with
// concurrent writers is claimed.
type SnapshotExtractor struct {
	conn   *sql.DB
	schema string
}

// NewSnapshotExtractor creates an extractor bound to one schema.
func NewSnapshotExtractor(conn *sql.DB, schema string) *SnapshotExtractor {
	if schema == "" {
		schema = "dbo"
	}
	return &SnapshotExtractor{conn: conn, schema: schema}
}

// Fetch selects every row of the table. It is an idempotent read, safe
// for the engine to retry. Column values scan as nullable text; the
// hasher's canonicalization takes it from there.
func (e *SnapshotExtractor) Fetch(ctx context.Context, table string) ([]cdc.Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s.%s WITH (NOLOCK)", e.schema, table)

	rows, err := e.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns for %s: %w", table, err)
	}

	var out []cdc.Row
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}

		row := make(cdc.Row, len(columns))
		for i, name := range columns {
			if values[i].Valid {
				row[name] = cdc.StringValue(values[i].String)
			} else {
				row[name] = cdc.NullValue()
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading rows from %s: %w", table, err)
	}
	return out, nil
}
