// Package db persists purity runs and verdicts in SQLite and exposes the
// audit and admin helpers built on top of them.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/peakpurity/internal/timeutil"
)

// ErrNotFound is returned when a run or verdict does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite handle shared by the stores.
type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// pragmas are passed in the DSN so the driver applies them to every pooled
// connection, not only the first.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

func dataSourceName(path string) string {
	params := make([]string, len(pragmas))
	for i, p := range pragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// OpenDB opens the database with the connection pragmas set, without
// touching the schema. Migration commands use it so they can inspect a
// dirty database.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dataSourceName(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database and brings the schema up to date.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string { return db.path }

// SetClock replaces the clock used to stamp created_at. Tests use a MockClock.
func (db *DB) SetClock(c timeutil.Clock) { db.clock = c }

func (db *DB) now() int64 { return db.clock.Now().UnixNano() }

// retryOnBusy retries f while SQLite reports the database as locked. WAL
// mode plus busy_timeout covers most contention; this handles the rest when
// the watcher and an API request write at the same moment.
func (db *DB) retryOnBusy(f func() error) error {
	const attempts = 5
	backoff := 20 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = f()
		if err == nil || !isBusy(err) {
			return err
		}
		db.clock.Sleep(backoff)
		backoff *= 2
	}
	return err
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
