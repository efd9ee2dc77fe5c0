package seed

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLTracker stores seed records in a table that Ensure creates.
type SQLTracker struct {
	db    *sqlx.DB
	table string
}

// NewSQLTracker rejects table names that are not plain identifiers.
func NewSQLTracker(db *sqlx.DB, table string) (*SQLTracker, error) {
	if db == nil {
		return nil, errors.New("sql tracker requires a db")
	}
	if table == "" {
		table = defaultTableName
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid seed table name %q", table)
	}
	return &SQLTracker{db: db, table: table}, nil
}

// Ensure creates the tracking table. The column types are portable across
// sqlite, postgres and mysql.
func (t *SQLTracker) Ensure(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(191) PRIMARY KEY,
	application VARCHAR(191) NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL
)`, t.table)
	if _, err := t.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create seed table %s: %w", t.table, err)
	}
	return nil
}

func (t *SQLTracker) HasRun(ctx context.Context, id string) (bool, error) {
	var n int
	query := t.db.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", t.table))
	if err := t.db.GetContext(ctx, &n, query, id); err != nil {
		return false, fmt.Errorf("query seed %s: %w", id, err)
	}
	return n > 0, nil
}

func (t *SQLTracker) MarkRun(ctx context.Context, record Record) error {
	if record.ID == "" {
		return errors.New("seed record ID is required")
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (id, application, description, applied_at) VALUES (:id, :application, :description, :applied_at)",
		t.table,
	)
	if _, err := t.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert seed record %s: %w", record.ID, err)
	}
	return nil
}
