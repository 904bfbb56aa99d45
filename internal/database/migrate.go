package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	"github.com/mindstash/mindstash-backend/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateLogger routes golang-migrate's output through the app logger
type migrateLogger struct {
	log *logrus.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Infof("migrate: "+format, v...)
}

func (l migrateLogger) Verbose() bool { return false }

func newMigrator(cfg config.DatabaseConfig, log *logrus.Logger) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening migration target: %w", err)
	}
	m.Log = migrateLogger{log: log}
	return m, nil
}

// RunMigrations applies all pending schema migrations and logs the resulting
// schema version
func RunMigrations(cfg config.DatabaseConfig, log *logrus.Logger) error {
	m, err := newMigrator(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Debug("schema already up to date")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("schema migrated")
	return nil
}

// RollbackMigration undoes the most recent migration
func RollbackMigration(cfg config.DatabaseConfig, log *logrus.Logger) error {
	m, err := newMigrator(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	return nil
}
