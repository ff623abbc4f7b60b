package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")
	st, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestNewSQLite(t *testing.T) {
	st, _ := newTestSQLite(t)

	var count int
	err := st.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('kv', 'schema_migrations')").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 tables, got %d", count)
	}
}

func TestNewSQLite_WALMode(t *testing.T) {
	st, _ := newTestSQLite(t)

	var journalMode string
	if err := st.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}
}

func TestNewSQLite_MigrationsRecorded(t *testing.T) {
	st, _ := newTestSQLite(t)

	var count int
	if err := st.conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 applied migrations, got %d", count)
	}

	// Running again must be a no-op
	if err := st.runMigrations(); err != nil {
		t.Fatalf("runMigrations() second run error = %v", err)
	}
}

func TestSQLite_ReadAbsent(t *testing.T) {
	st, _ := newTestSQLite(t)

	value, ok, err := st.Read("chat_sessions")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ok || value != nil {
		t.Errorf("Read() of absent key = %q, %v", value, ok)
	}
}

func TestSQLite_WriteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	st, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := st.Write("chat_session_order", []byte(`["a","b"]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := st.Write("chat_session_order", []byte(`["b","a"]`)); err != nil {
		t.Fatalf("Write() overwrite error = %v", err)
	}
	_ = st.Close()

	reopened, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	value, ok, err := reopened.Read("chat_session_order")
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v", ok, err)
	}
	if string(value) != `["b","a"]` {
		t.Errorf("Read() = %s", value)
	}
}

func TestSQLite_ClosedIsUnavailable(t *testing.T) {
	st, _ := newTestSQLite(t)
	_ = st.Close()

	err := st.Write("k", []byte("v"))
	if err == nil {
		t.Fatal("expected error writing to closed store")
	}
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Op != "write" {
		t.Errorf("expected *StorageError with op write, got %v", err)
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestNewSQLite_BadDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewSQLite(filepath.Join(blocker, "sub", "sessions.db"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}
