package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-job-runner/pkg/core"
)

// openSQLite opens a SQLite database in a temporary file. A file is used
// rather than ":memory:" so every pooled connection sees the same data.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "jobs.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open sqlite")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// openTestDB connects to PostgreSQL when TEST_DATABASE_URL is set and falls
// back to SQLite otherwise.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		db := openSQLite(t)
		_, err := Configure(db, MaxOpenConns(1))
		require.NoError(t, err)
		return db
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open postgres test db")
	_, err = Configure(db, MaxOpenConns(2), MaxIdleConns(1))
	require.NoError(t, err)

	cleanup := func() { db.Exec("DELETE FROM jobs") }
	cleanup()
	t.Cleanup(func() {
		cleanup()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestStorage(t *testing.T) *GormStorage {
	t.Helper()
	s := NewGormStorage(openTestDB(t))
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return s
}

func newTestJob(description string) *core.Job {
	return &core.Job{
		Description: description,
		Kind:        "log",
		Params:      []byte(`{"message":"hi"}`),
	}
}
