package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/maplewood-dwh/snapcdc/internal/engine"
)

// GetColumnNames lists a table's columns from INFORMATION_SCHEMA. An
// unknown table yields an empty slice, not an error.
func GetColumnNames(ctx context.Context, conn *sql.DB, schema, tableName string) ([]string, error) {
	query := `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @tableName`
	rows, err := conn.QueryContext(ctx, query, sql.Named("schema", schema), sql.Named("tableName", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var columnName string
		if err := rows.Scan(&columnName); err != nil {
			return nil, err
		}
		columns = append(columns, columnName)
	}
	return columns, rows.Err()
}

// VerifyTables checks that every configured table and its primary key
// column exist before any table processing begins. A connectivity failure
// during verification is logged and tolerated; per-table retries will
// surface it later if it persists.
func VerifyTables(ctx context.Context, conn *sql.DB, schema string, tables []engine.TableConfig) error {
	for _, t := range tables {
		columns, err := GetColumnNames(ctx, conn, schema, t.Name)
		if err != nil {
			log.Warn("Could not inspect table, deferring to extraction", "table", t.Name, "error", err)
			continue
		}
		if len(columns) == 0 {
			return fmt.Errorf("table %s.%s does not exist", schema, t.Name)
		}
		found := false
		for _, c := range columns {
			if strings.EqualFold(c, t.PrimaryKey) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("primary key column %s not found in table %s.%s", t.PrimaryKey, schema, t.Name)
		}
	}
	return nil
}
