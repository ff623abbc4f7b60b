package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neilberkman/ragchat/internal/core/config"
)

func TestFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := st.Read("chat_sessions"); ok || err != nil {
		t.Fatalf("Read() absent = %v, %v", ok, err)
	}

	if err := st.Write("chat/sessions", []byte(`{}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	value, ok, err := st.Read("chat/sessions")
	if err != nil || !ok || string(value) != `{}` {
		t.Fatalf("Read() = %q, %v, %v", value, ok, err)
	}

	// Key is escaped into a single file, no temp files left behind
	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(matches) != 1 {
		t.Errorf("expected exactly one file, got %v", matches)
	}
}

func TestFile_WriteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Write("chat_session_order", []byte(`["a"]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := st.syncDir(); err != nil {
		t.Errorf("syncDir() error = %v", err)
	}

	reopened, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	value, ok, err := reopened.Read("chat_session_order")
	if err != nil || !ok || string(value) != `["a"]` {
		t.Fatalf("Read() = %q, %v, %v", value, ok, err)
	}
}

func TestFile_SyncDirMissing(t *testing.T) {
	st := &File{dir: filepath.Join(t.TempDir(), "gone")}
	if err := st.syncDir(); err == nil {
		t.Error("syncDir() on a missing directory should fail")
	}
}

func TestMemory_QuotaIsStorageFull(t *testing.T) {
	st := NewMemory(10)

	if err := st.Write("a", []byte("12345")); err != nil {
		t.Fatal(err)
	}
	err := st.Write("b", []byte("123456"))
	if !errors.Is(err, ErrStorageFull) {
		t.Fatalf("expected ErrStorageFull, got %v", err)
	}
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Key != "b" {
		t.Errorf("expected *StorageError for key b, got %v", err)
	}

	// Overwriting a key counts only the new size
	if err := st.Write("a", []byte("1234567890")); err != nil {
		t.Errorf("overwrite within quota error = %v", err)
	}
	if st.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", st.Writes())
	}
}

func TestMemory_FailWith(t *testing.T) {
	st := NewMemory(0)
	st.FailWith(ErrStorageUnavailable)
	if err := st.Write("k", nil); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	st.FailWith(nil)
	if err := st.Write("k", nil); err != nil {
		t.Fatalf("Write() after reset error = %v", err)
	}
}

type flakyStore struct {
	*Memory
	failures int
	err      error
	calls    int
}

func (f *flakyStore) Write(key string, value []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return &StorageError{Key: key, Op: "write", Err: f.err}
	}
	return f.Memory.Write(key, value)
}

func TestRetrying(t *testing.T) {
	t.Run("retries unavailable", func(t *testing.T) {
		flaky := &flakyStore{Memory: NewMemory(0), failures: 2, err: ErrStorageUnavailable}
		r := NewRetrying(flaky, 3, time.Millisecond)
		r.sleep = func(time.Duration) {}

		if err := r.Write("k", []byte("v")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if flaky.calls != 3 {
			t.Errorf("calls = %d, want 3", flaky.calls)
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		flaky := &flakyStore{Memory: NewMemory(0), failures: 10, err: ErrStorageUnavailable}
		r := NewRetrying(flaky, 2, time.Millisecond)
		r.sleep = func(time.Duration) {}

		if err := r.Write("k", []byte("v")); !errors.Is(err, ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
		if flaky.calls != 3 {
			t.Errorf("calls = %d, want 3", flaky.calls)
		}
	})

	t.Run("full is not retried", func(t *testing.T) {
		flaky := &flakyStore{Memory: NewMemory(0), failures: 10, err: ErrStorageFull}
		r := NewRetrying(flaky, 5, time.Millisecond)
		r.sleep = func(time.Duration) {}

		if err := r.Write("k", []byte("v")); !errors.Is(err, ErrStorageFull) {
			t.Fatalf("expected ErrStorageFull, got %v", err)
		}
		if flaky.calls != 1 {
			t.Errorf("calls = %d, want 1", flaky.calls)
		}
	})
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{"sqlite", config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "s.db")}, false},
		{"file", config.StoreConfig{Backend: "file", Path: filepath.Join(dir, "records")}, false},
		{"memory", config.StoreConfig{Backend: "memory"}, false},
		{"memory with retry", config.StoreConfig{Backend: "memory", RetryAttempts: 2}, false},
		{"unknown", config.StoreConfig{Backend: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if st != nil {
				_ = st.Close()
			}
		})
	}
}

func TestWriteAll(t *testing.T) {
	t.Run("batch store counts one write", func(t *testing.T) {
		st := NewMemory(0)
		err := WriteAll(st, map[string][]byte{"a": []byte("1"), "b": []byte("2")})
		if err != nil {
			t.Fatal(err)
		}
		if st.Writes() != 1 {
			t.Errorf("Writes() = %d, want 1", st.Writes())
		}
		if v, ok, _ := st.Read("b"); !ok || string(v) != "2" {
			t.Errorf("Read(b) = %q, %v", v, ok)
		}
	})

	t.Run("sqlite batch", func(t *testing.T) {
		st, _ := newTestSQLite(t)
		err := WriteAll(st, map[string][]byte{"a": []byte("1"), "b": []byte("2")})
		if err != nil {
			t.Fatal(err)
		}
		if v, ok, _ := st.Read("a"); !ok || string(v) != "1" {
			t.Errorf("Read(a) = %q, %v", v, ok)
		}
	})

	t.Run("file falls back to per key writes", func(t *testing.T) {
		st, err := NewFile(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		if err := WriteAll(st, map[string][]byte{"a": []byte("1"), "b": []byte("2")}); err != nil {
			t.Fatal(err)
		}
		if v, ok, _ := st.Read("a"); !ok || string(v) != "1" {
			t.Errorf("Read(a) = %q, %v", v, ok)
		}
	})
}
