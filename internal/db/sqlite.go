// Package db opens the SQLite metastore that backs the persistent table
// definition store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// Mode selects how a pool is configured.
type Mode string

// Pool modes.
const (
	// ModeWrite is a single-connection pool whose transactions take the
	// write lock when they begin.
	ModeWrite Mode = "write"
	// ModeRead is a multi-connection pool for lookups.
	ModeRead Mode = "read"
)

const (
	busyTimeoutMillis  = "5000"
	journalMode        = "WAL"
	synchronousLevel   = "NORMAL"
	defaultReadMaxOpen = 4
)

// OpenSQLite opens a pool on the SQLite file at path. maxOpen sizes read
// pools; zero means 4. Write pools always hold one connection.
func OpenSQLite(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadMaxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// OpenSQLitePair opens a write pool and a read pool on the same file.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, nil, err
	}
	readDB, err = OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeoutMillis)
	params.Set("_synchronous", synchronousLevel)
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
