package db

import (
	"database/sql"
	"fmt"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
)

var log = logging.GetLogger()

// Connect establishes a connection pool to the source SQL Server database
// and verifies it with a ping.
func Connect(connectionString string) (*sql.DB, error) {
	conn, err := sql.Open("sqlserver", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Connected to source database")
	return conn, nil
}
