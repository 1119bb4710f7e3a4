package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ConnConfig holds the database/sql connection limits applied by Open.
// Zero values leave the database/sql default in place.
type ConnConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultConnConfig returns the limits used for server databases. Each worker
// writes at most one status at a time, so 25 connections cover the default
// worker count with room for the HTTP layer.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		MaxOpen:     25,
		MaxIdle:     10,
		MaxLifetime: 5 * time.Minute,
		MaxIdleTime: time.Minute,
	}
}

// ConnOption adjusts a ConnConfig.
type ConnOption interface {
	applyConn(*ConnConfig)
}

type connOptionFunc func(*ConnConfig)

func (f connOptionFunc) applyConn(c *ConnConfig) { f(c) }

// MaxOpenConns limits the number of open connections.
func MaxOpenConns(n int) ConnOption {
	return connOptionFunc(func(c *ConnConfig) { c.MaxOpen = n })
}

// MaxIdleConns limits the number of idle connections kept for reuse.
func MaxIdleConns(n int) ConnOption {
	return connOptionFunc(func(c *ConnConfig) { c.MaxIdle = n })
}

// ConnMaxLifetime closes connections older than d.
func ConnMaxLifetime(d time.Duration) ConnOption {
	return connOptionFunc(func(c *ConnConfig) { c.MaxLifetime = d })
}

// ConnMaxIdleTime closes connections idle for longer than d.
func ConnMaxIdleTime(d time.Duration) ConnOption {
	return connOptionFunc(func(c *ConnConfig) { c.MaxIdleTime = d })
}

// Configure applies DefaultConnConfig and then opts to the connections of db.
func Configure(db *gorm.DB, opts ...ConnOption) (ConnConfig, error) {
	cfg := DefaultConnConfig()
	for _, opt := range opts {
		opt.applyConn(&cfg)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return cfg, fmt.Errorf("storage: underlying connection: %w", err)
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}
	if cfg.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}
	return cfg, nil
}
