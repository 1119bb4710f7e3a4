package storage

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported driver names for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to a database and applies its connection limits. SQLite
// defaults to a single open connection since it serializes writers; opts
// override the defaults.
func Open(driver, dsn string, opts ...ConnOption) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(dsn)
		opts = append([]ConnOption{MaxOpenConns(1), MaxIdleConns(1)}, opts...)
	case DriverPostgres, "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	if _, err := Configure(db, opts...); err != nil {
		return nil, err
	}
	return db, nil
}
