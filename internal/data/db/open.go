package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured driver and runs migrations.
func Open(log *logger.Logger, driver, sqlitePath string) (*gorm.DB, error) {
	var (
		gdb *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverPostgres:
		var svc *PostgresService
		svc, err = NewPostgresService(log)
		if err == nil {
			gdb = svc.DB()
		}
	case DriverSQLite:
		gdb, err = OpenSQLite(sqlitePath)
		if err == nil {
			log.Warn("Using sqlite database; not intended for multi-instance deployments", "path", sqlitePath)
		}
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrateAll(gdb); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return gdb, nil
}
