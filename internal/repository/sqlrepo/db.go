package sqlrepo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aquamarinepk/cruddemo/internal/platform"
	"github.com/jmoiron/sqlx"
)

// Options configures the connection pool.
type Options struct {
	Driver          string        `koanf:"driver"`
	DSN             string        `koanf:"dsn"`
	MaxConns        int           `koanf:"maxconns"`
	ConnMaxLifetime time.Duration `koanf:"connmaxlifetime"`
}

// DB is a pool bound to its dialect.
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// Open connects, pings and applies the dialect's session setup.
func Open(ctx context.Context, opts Options) (*DB, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := dialect.PrepareDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialect.Name(), err)
	}

	maxConns := opts.MaxConns
	// Every connection to :memory: opens a different database.
	if dialect.Name() == "sqlite" && strings.Contains(dsn, ":memory:") {
		maxConns = 1
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure %s: %w", dialect.Name(), err)
		}
	}
	return &DB{DB: db, Dialect: dialect}, nil
}

// Migrate applies schema statements separated by ";" after rewriting
// them for the dialect.
func (db *DB) Migrate(ctx context.Context, schemas ...string) error {
	for _, schema := range schemas {
		for _, stmt := range strings.Split(schema, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, db.Dialect.CreateTableSQL(stmt)); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) HealthChecks() platform.HealthChecks {
	return platform.HealthChecks{
		Readiness: map[string]platform.HealthCheck{"sql": db.Ping},
	}
}

func (db *DB) Stop(context.Context) error {
	return db.Close()
}
