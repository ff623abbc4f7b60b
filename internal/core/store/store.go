package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/neilberkman/ragchat/internal/core/config"
)

// Store is durable key-value persistence. It holds no business logic and
// never inspects payloads. Write is synchronous: once it returns nil the
// value survives a process restart.
type Store interface {
	Read(key string) ([]byte, bool, error)
	Write(key string, value []byte) error
	Close() error
}

var (
	// ErrStorageFull means the backend refused a write for lack of space
	ErrStorageFull = errors.New("storage full")
	// ErrStorageUnavailable means the backend could not be reached or opened
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError represents errors accessing the durable store
type StorageError struct {
	Key string
	Op  string // "open", "read", "write"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// classified joins a backend error with one of the sentinel kinds so that
// errors.Is works for both.
type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.kind, c.err)
}

func (c *classified) Unwrap() []error {
	return []error{c.kind, c.err}
}

func classify(kind, err error) error {
	if err == nil {
		return nil
	}
	return &classified{kind: kind, err: err}
}

// Open creates the backend selected by cfg.Backend
func Open(cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Backend {
	case "", "sqlite":
		st, err = NewSQLite(cfg.Path)
	case "file":
		st, err = NewFile(cfg.Path)
	case "memory":
		st = NewMemory(0)
	case "redis":
		st, err = NewRedis(cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RetryAttempts > 0 {
		st = NewRetrying(st, cfg.RetryAttempts, cfg.RetryBackoff.Duration)
	}
	return st, nil
}

// BatchWriter is implemented by stores that can persist several records
// as one write.
type BatchWriter interface {
	WriteBatch(records map[string][]byte) error
}

// WriteAll persists records in one batch when the store supports it, and
// key by key otherwise.
func WriteAll(st Store, records map[string][]byte) error {
	if bw, ok := st.(BatchWriter); ok {
		return bw.WriteBatch(records)
	}
	for _, key := range sortedKeys(records) {
		if err := st.Write(key, records[key]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(records map[string][]byte) []string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
