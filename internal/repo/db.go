// Package repo implements the persistence layer of the ticket ledger, backed
// by GORM. This file contains database bootstrapping helpers for SQLite (pure
// Go driver) and schema migrations.
package repo

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-ticket-bridge/internal/domain"
)

// slowQueryThreshold marks ledger statements worth a warning. The ledger is
// written once per order, so anything this slow means lock contention.
const slowQueryThreshold = 200 * time.Millisecond

// Pool sizing for the ledger. Writes are rare, reads come from idempotency
// lookups on every POST.
const (
	maxOpenConns    = 10
	connMaxIdleTime = 5 * time.Minute
	connMaxLifetime = 30 * time.Minute
)

// ledgerPragmas are applied by the driver on every new connection, so pooled
// connections all share WAL, foreign keys and the busy timeout.
var ledgerPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// OpenSQLite opens (or creates) the ticket ledger at path, applies the ledger
// PRAGMAs, routes GORM logging into zerolog and installs the OpenTelemetry
// tracing plugin. path may also be ":memory:" or a "file:" URI.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("open ledger: empty path")
	}
	// A missing parent directory otherwise surfaces as sqlite's opaque
	// "out of memory (14)".
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("open ledger: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(ledgerDSN(path)), &gorm.Config{
		Logger: newGormLogger(slowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("ledger tracing: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	conns := maxOpenConns
	if path == ":memory:" {
		// every connection would get its own empty database
		conns = 1
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return db, nil
}

// ledgerDSN appends the ledger PRAGMAs to path as driver query parameters.
func ledgerDSN(path string) string {
	q := url.Values{}
	for _, p := range ledgerPragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Ticket{},
		&domain.Idempotency{},
	)
}
