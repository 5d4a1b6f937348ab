package database

import (
	"context"
	"fmt"
	"strings"

	"quizierra/internal/config"
	"quizierra/internal/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers "sqlite"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const defaultSQLiteDSN = "file:quizierra.db"

// sqlitePragmas are appended to every SQLite DSN so each pooled connection gets them.
var sqlitePragmas = []string{
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
}

// Open connects to the configured database and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	driver := Driver(cfg.Driver)

	var driverName, dsn string
	switch driver {
	case DriverSQLite:
		driverName = "sqlite"
		dsn = SQLiteDSN(cfg.DSN)
	case DriverPostgres:
		driverName = "pgx"
		dsn = cfg.DSN
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite has a single writer; one connection avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	logger.Get().Info("Connected to database", zap.String("driver", string(driver)))
	return db, nil
}

// SQLiteDSN normalises a path or URI into a modernc DSN carrying the required pragmas.
func SQLiteDSN(dsn string) string {
	if strings.TrimSpace(dsn) == "" {
		dsn = defaultSQLiteDSN
	}
	if dsn == ":memory:" {
		dsn = "file::memory:"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		key := p[:strings.Index(p, "(")]
		if strings.Contains(dsn, key+"(") {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	return dsn
}

// DriverOf reports which backend db was opened with.
func DriverOf(db *sqlx.DB) Driver {
	if db.DriverName() == "pgx" {
		return DriverPostgres
	}
	return DriverSQLite
}
