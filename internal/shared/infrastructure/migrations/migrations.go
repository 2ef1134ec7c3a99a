// Package migrations applies the embedded schema to a database connection.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var schemaFS embed.FS

// Up applies all pending migrations for the connection's driver.
func Up(conn database.Connection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	switch conn.Driver() {
	case database.DriverPostgres:
		p, ok := conn.(interface{ Pool() *pgxpool.Pool })
		if !ok {
			return fmt.Errorf("postgres connection %T does not expose its pool", conn)
		}
		// The migrate driver closes the *sql.DB it is given, so it gets its own.
		db := stdlib.OpenDB(*p.Pool().Config().ConnConfig)
		driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to create postgres migration driver: %w", err)
		}
		m, err := newMigrate("postgres", driver)
		if err != nil {
			driver.Close()
			return err
		}
		defer m.Close()
		return run(m, database.DriverPostgres, logger)

	case database.DriverSQLite:
		s, ok := conn.(interface{ DB() *sql.DB })
		if !ok {
			return fmt.Errorf("sqlite connection %T does not expose its database", conn)
		}
		driver, err := migratesqlite.WithInstance(s.DB(), &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("failed to create sqlite migration driver: %w", err)
		}
		m, src, err := newMigrateWithSource("sqlite", driver)
		if err != nil {
			return err
		}
		// m.Close would close the shared single-connection pool; only the
		// source is released here.
		defer src.Close()
		return run(m, database.DriverSQLite, logger)

	default:
		return fmt.Errorf("unsupported database driver: %s", conn.Driver())
	}
}

func newMigrate(dir string, driver migratedb.Driver) (*migrate.Migrate, error) {
	m, _, err := newMigrateWithSource(dir, driver)
	return m, err
}

func newMigrateWithSource(dir string, driver migratedb.Driver) (*migrate.Migrate, interface{ Close() error }, error) {
	src, err := iofs.New(schemaFS, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dir, driver)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("failed to initialise migrations: %w", err)
	}
	return m, src, nil
}

func run(m *migrate.Migrate, driver database.Driver, logger *slog.Logger) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply %s migrations: %w", driver, err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%s schema is dirty at version %d", driver, version)
	}
	logger.Info("database migrated", "driver", driver, "version", version)
	return nil
}
