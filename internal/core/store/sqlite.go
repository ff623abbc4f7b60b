package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite is the default durable store: one kv table in a WAL database
type SQLite struct {
	conn *sql.DB
	path string
}

// NewSQLite creates a new database connection and initializes schema
func NewSQLite(dbPath string) (*SQLite, error) {
	// Ensure parent directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, &StorageError{Key: dbPath, Op: "open", Err: classify(ErrStorageUnavailable, err)}
	}

	// synchronous(FULL) so a returned Write survives a crash
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Key: dbPath, Op: "open", Err: classify(ErrStorageUnavailable, err)}
	}

	// SQLite only supports one writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	s := &SQLite{conn: conn, path: dbPath}

	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, &StorageError{Key: dbPath, Op: "open", Err: classify(ErrStorageUnavailable, fmt.Errorf("failed to initialize schema: %w", err))}
	}

	if err := s.runMigrations(); err != nil {
		_ = conn.Close()
		return nil, &StorageError{Key: dbPath, Op: "open", Err: classify(ErrStorageUnavailable, fmt.Errorf("failed to run migrations: %w", err))}
	}

	return s, nil
}

// Read returns the value stored under key
func (s *SQLite) Read(key string) ([]byte, bool, error) {
	var value []byte
	err := s.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Key: key, Op: "read", Err: s.classifyErr(err)}
	}
	return value, true, nil
}

// Write upserts value under key
func (s *SQLite) Write(key string, value []byte) error {
	_, err := s.conn.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return &StorageError{Key: key, Op: "write", Err: s.classifyErr(err)}
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) classifyErr(err error) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_FULL:
			return classify(ErrStorageFull, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_READONLY, sqlite3.SQLITE_IOERR:
			return classify(ErrStorageUnavailable, err)
		}
	}
	if strings.Contains(err.Error(), "database is closed") {
		return classify(ErrStorageUnavailable, err)
	}
	return err
}

// WriteBatch upserts all records in one transaction
func (s *SQLite) WriteBatch(records map[string][]byte) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return &StorageError{Key: "batch", Op: "write", Err: s.classifyErr(err)}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, key := range sortedKeys(records) {
		_, err := tx.Exec(`
			INSERT INTO kv (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = CURRENT_TIMESTAMP
		`, key, records[key])
		if err != nil {
			return &StorageError{Key: key, Op: "write", Err: s.classifyErr(err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Key: "batch", Op: "write", Err: s.classifyErr(err)}
	}
	return nil
}
