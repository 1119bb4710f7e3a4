// Package storage provides the GORM-backed job store.
//
// This package includes:
//   - GormStorage: an implementation of core.Store for SQLite and PostgreSQL
//   - Open: a helper that opens a database by driver name and configures
//     its connection pool
//
// The Store interface is defined in pkg/core and may be implemented by other
// backends.
package storage
