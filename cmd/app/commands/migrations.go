package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/heatpump-outbox/internal/database"
)

// migrationTarget returns the migration source and the migrate database URL for driver.
// golang-migrate selects its MySQL driver from a mysql:// scheme that the
// go-sql-driver DSN format lacks.
func migrationTarget(driver, connectionString string) (string, string, error) {
	switch driver {
	case database.DriverPostgres:
		return "file://migrations/postgresql", connectionString, nil
	case database.DriverMySQL:
		return "file://migrations/mysql", "mysql://" + connectionString, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// RunMigrations applies pending settings and outbox migrations, or rolls back
// rollbackSteps migrations when it is positive.
func RunMigrations(logger *slog.Logger, driver, connectionString string, rollbackSteps int) error {
	source, databaseURL, err := migrationTarget(driver, connectionString)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if rollbackSteps > 0 {
		logger.Info("rolling back database migrations",
			slog.String("driver", driver),
			slog.Int("steps", rollbackSteps),
		)
		err = m.Steps(-rollbackSteps)
	} else {
		logger.Info("running database migrations", slog.String("driver", driver))
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info("database has no migrations applied")
	case err != nil:
		return fmt.Errorf("failed to read migration version: %w", err)
	default:
		logger.Info("migrations completed",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}
