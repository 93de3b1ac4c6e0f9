// Package models provides GORM-based models with a Django ORM-like interface
// for templates, generated documents, signatures and the audit trail.
package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docsign/internal/apperr"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection and all model managers
type DB struct {
	*gorm.DB
	Categories *TemplateCategoryManager
	Templates  *TemplateManager
	Fields     *TemplateFieldManager
	Documents  *DocumentManager
	Signatures *SignatureManager
	Audit      *AuditManager

	schemaVersion uint
	migrated      bool
}

// NewDB connects to PostgreSQL and applies the embedded SQL migrations.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	db := Wrap(gormDB)
	adapter := NewMigrateAdapter(gormDB)
	if err := adapter.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	version, dirty, err := adapter.GetMigrationVersion()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not read schema version: %w", err)
	}
	if dirty {
		_ = db.Close()
		return nil, fmt.Errorf("schema version %d is dirty", version)
	}
	db.schemaVersion = version
	db.migrated = true
	return db, nil
}

// Open wraps any GORM dialector and creates the schema with AutoMigrate.
// Tests use it with SQLite.
func Open(dialector gorm.Dialector) (*DB, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := Wrap(gormDB)
	if err := db.AutoMigrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return db, nil
}

// Wrap builds the manager set around an existing connection or transaction.
func Wrap(gormDB *gorm.DB) *DB {
	return &DB{
		DB:         gormDB,
		Categories: NewTemplateCategoryManager(gormDB),
		Templates:  NewTemplateManager(gormDB),
		Fields:     NewTemplateFieldManager(gormDB),
		Documents:  NewDocumentManager(gormDB),
		Signatures: NewSignatureManager(gormDB),
		Audit:      NewAuditManager(gormDB),
	}
}

// SchemaVersion reports the migration version applied by NewDB. ok is false
// for databases created with Open.
func (db *DB) SchemaVersion() (version uint, ok bool) {
	return db.schemaVersion, db.migrated
}

// AutoMigrate runs GORM auto-migration for all models
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&TemplateCategory{},
		&Template{},
		&TemplateField{},
		&GeneratedDocument{},
		&SignatureRecord{},
		&AuditEntry{},
	)
}

// Transaction runs a function within a database transaction
func (db *DB) Transaction(ctx context.Context, fn func(*DB) error) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Wrap(tx))
	})
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Django-like convenience methods

// GetObjectOr404 retrieves an object or returns a not-found error (similar to Django's get_object_or_404)
func GetObjectOr404[T any](db *gorm.DB, conditions ...interface{}) (*T, error) {
	var obj T
	err := db.First(&obj, conditions...).Error
	if err != nil {
		return nil, notFoundOr(err, "object not found")
	}
	return &obj, nil
}

// Exists checks if a record exists (similar to Django's exists())
func Exists[T any](db *gorm.DB, conditions ...interface{}) (bool, error) {
	var count int64
	err := db.Model(new(T)).Where(conditions[0], conditions[1:]...).Count(&count).Error
	return count > 0, err
}

// BulkCreate creates multiple records (similar to Django's bulk_create)
func BulkCreate[T any](db *gorm.DB, objects []T) error {
	if len(objects) == 0 {
		return nil
	}
	return db.CreateInBatches(objects, 100).Error
}

// Count returns the count of records (similar to Django's count())
func Count[T any](db *gorm.DB, conditions ...interface{}) (int64, error) {
	var count int64
	query := db.Model(new(T))
	if len(conditions) > 0 {
		query = query.Where(conditions[0], conditions[1:]...)
	}
	err := query.Count(&count).Error
	return count, err
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("models", msg)
	}
	return err
}
