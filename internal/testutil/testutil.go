package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"docsign/internal/logger"
	"docsign/internal/models"

	"gorm.io/driver/sqlite"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens a private in-memory SQLite database with the full schema. Each
// call gets its own database, closed when the test ends.
func DB(tb testing.TB) *models.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:docsign_test_%d?mode=memory&cache=shared&_foreign_keys=1", dbSeq.Add(1))

	db, err := models.Open(sqlite.Open(dsn))
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		tb.Fatalf("sql.DB: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)

	tb.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
