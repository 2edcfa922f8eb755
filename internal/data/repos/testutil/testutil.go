package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/galaxychat-backend/internal/data/db"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
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

// DB returns a migrated database. With TEST_POSTGRES_DSN set it is a shared postgres
// connection (use Tx for isolation); otherwise every call gets a fresh sqlite file
// under tb.TempDir().
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		pgOnce.Do(func() {
			pgDB, pgErr = db.OpenPostgres(dsn)
			if pgErr == nil {
				pgErr = db.AutoMigrateAll(pgDB)
			}
		})
		if pgErr != nil {
			tb.Fatalf("postgres test db: %v", pgErr)
		}
		return pgDB
	}
	gdb, err := db.OpenSQLite(tb.TempDir() + "/test.db")
	if err != nil {
		tb.Fatalf("sqlite test db: %v", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

// Tx opens a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
