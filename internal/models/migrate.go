package models

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrateAdapter runs the embedded SQL migrations against the GORM connection.
type MigrateAdapter struct {
	db        *gorm.DB
	migration *migrate.Migrate
}

func NewMigrateAdapter(db *gorm.DB) *MigrateAdapter {
	return &MigrateAdapter{db: db}
}

// instance is built once per adapter; the postgres driver pins a connection.
func (m *MigrateAdapter) instance() (*migrate.Migrate, error) {
	if m.migration != nil {
		return m.migration, nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get sql.DB from gorm: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("could not open embedded migrations: %w", err)
	}

	migration, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("could not create migration instance: %w", err)
	}
	m.migration = migration
	return migration, nil
}

// RunMigrations applies every pending up migration.
func (m *MigrateAdapter) RunMigrations() error {
	migration, err := m.instance()
	if err != nil {
		return err
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// GetMigrationVersion returns the applied schema version and whether the
// last migration left the schema dirty.
func (m *MigrateAdapter) GetMigrationVersion() (uint, bool, error) {
	migration, err := m.instance()
	if err != nil {
		return 0, false, err
	}
	return migration.Version()
}
