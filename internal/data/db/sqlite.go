package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite opens a file (or ":memory:") database. Writes are serialized through a
// single connection since sqlite allows one writer at a time.
func OpenSQLite(path string) (*gorm.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "galaxychat.db"
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
