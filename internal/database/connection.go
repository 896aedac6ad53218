// Package database manages the storage connection and schema shared by the
// registry, page, version, and site repositories.
package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Connect opens the configured driver, verifies connectivity, and applies
// pool limits suitable for a single-host deployment.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// SQLite serializes writers itself; a single connection avoids
	// SQLITE_BUSY under concurrent version saves.
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	RegisterPoolMetrics(db)
	return db, nil
}
