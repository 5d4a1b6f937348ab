package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"quizierra/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// openMigrationDB opens the pool handed to the postgres migrate driver, which closes it
// together with the migrator.
var openMigrationDB = pgxMigrationDB

// pgxMigrationDB opens a separate pool on the server db is connected to.
func pgxMigrationDB(ctx context.Context, db *sqlx.DB) (*sql.DB, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve connection: %w", err)
	}
	defer conn.Close()

	var migrationDB *sql.DB
	err = conn.Raw(func(driverConn any) error {
		pc, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		migrationDB = stdlib.OpenDB(*pc.Conn().Config())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return migrationDB, nil
}

// newMigrator returns a migrator and a release func. Postgres migrations run on their own
// pool that release closes. The SQLite driver wraps db itself, so closing it would close db
// and release is a no-op.
func newMigrator(ctx context.Context, db *sqlx.DB) (*migrate.Migrate, func(), error) {
	driver := DriverOf(db)

	var (
		instance database.Driver
		dir      string
		err      error
	)
	switch driver {
	case DriverSQLite:
		dir = "migrations/sqlite"
		instance, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		migrationDB, openErr := openMigrationDB(ctx, db)
		if openErr != nil {
			return nil, nil, fmt.Errorf("failed to open migration connection: %w", openErr)
		}
		instance, err = migratepgx.WithInstance(migrationDB, &migratepgx.Config{})
		if err != nil {
			_ = migrationDB.Close()
		}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	closeInstance := func() {
		if driver == DriverPostgres {
			_ = instance.Close()
		}
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		closeInstance()
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(driver), instance)
	if err != nil {
		closeInstance()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	release := func() {}
	if driver == DriverPostgres {
		release = func() {
			if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
				logger.Get().Warn("Failed to release migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
			}
		}
	}
	return m, release, nil
}

// Migrate brings the schema up to the latest version. It is safe to call on every startup:
// an up-to-date schema is left untouched and existing rows are never dropped.
func Migrate(db *sqlx.DB) error {
	m, release, err := newMigrator(context.Background(), db)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Get().Debug("Schema already up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Get().Info("Applied schema migrations", zap.Uint("version", version))
	return nil
}

// SchemaVersion returns the applied migration version, 0 for an uninitialised database.
func SchemaVersion(db *sqlx.DB) (uint, bool, error) {
	m, release, err := newMigrator(context.Background(), db)
	if err != nil {
		return 0, false, err
	}
	defer release()
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
