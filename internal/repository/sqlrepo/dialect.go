package sqlrepo

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect hides the SQL differences between the supported databases.
// Schemas are written in the sqlite flavour and rewritten by
// CreateTableSQL.
type Dialect interface {
	Name() string
	DriverName() string
	Quote(ident string) string
	CreateTableSQL(schema string) string
	// ConfigureDB lists statements run once after the pool opens.
	ConfigureDB() []string
	PrepareDSN(dsn string) (string, error)
	// ReturningID reports whether inserts read the new key back with
	// RETURNING instead of LastInsertId.
	ReturningID() bool
}

// DialectFor resolves a dialect by name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pg":
		return Postgres{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", name)
	}
}

type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite3" }
func (SQLite) ReturningID() bool  { return false }

func (SQLite) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (SQLite) CreateTableSQL(schema string) string { return schema }

func (SQLite) ConfigureDB() []string {
	return []string{"PRAGMA foreign_keys = ON"}
}

// PrepareDSN adds a busy timeout so concurrent writers wait instead of
// failing with SQLITE_BUSY.
func (SQLite) PrepareDSN(dsn string) (string, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000", nil
}

type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "postgres" }
func (Postgres) ReturningID() bool  { return true }
func (Postgres) ConfigureDB() []string {
	return nil
}

func (Postgres) Quote(ident string) string {
	return pq.QuoteIdentifier(ident)
}

func (Postgres) CreateTableSQL(schema string) string {
	return strings.NewReplacer(
		"INTEGER PRIMARY KEY AUTOINCREMENT", "BIGSERIAL PRIMARY KEY",
		"DATETIME", "TIMESTAMP",
		"REAL", "DOUBLE PRECISION",
	).Replace(schema)
}

// PrepareDSN accepts both URL and key=value forms and normalizes URLs.
func (Postgres) PrepareDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("parse postgres dsn: %w", err)
		}
		return converted, nil
	}
	return dsn, nil
}

type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }
func (MySQL) ReturningID() bool  { return false }
func (MySQL) ConfigureDB() []string {
	return nil
}

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) CreateTableSQL(schema string) string {
	return strings.NewReplacer(
		"INTEGER PRIMARY KEY AUTOINCREMENT", "BIGINT AUTO_INCREMENT PRIMARY KEY",
		"DATETIME", "DATETIME(6)",
		"REAL", "DOUBLE",
	).Replace(schema)
}

// PrepareDSN forces parseTime so DATETIME columns scan into time.Time.
func (MySQL) PrepareDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
