package store

import (
	"fmt"
	"sync"
)

// Memory is an in-process store for tests and ephemeral runs. A positive
// quota caps the total bytes held, producing ErrStorageFull beyond it.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	quota  int
	writes int
	failed error
}

func NewMemory(quota int) *Memory {
	return &Memory{data: make(map[string][]byte), quota: quota}
}

func (m *Memory) Read(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Write(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failed != nil {
		return &StorageError{Key: key, Op: "write", Err: m.failed}
	}
	if m.quota > 0 {
		size := len(value)
		for k, v := range m.data {
			if k != key {
				size += len(v)
			}
		}
		if size > m.quota {
			return &StorageError{Key: key, Op: "write", Err: classify(ErrStorageFull, fmt.Errorf("%d bytes exceeds quota of %d", size, m.quota))}
		}
	}

	m.data[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Writes counts successful writes
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailWith makes every later write fail with err; nil restores writes
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = err
}

// WriteBatch stores all records as a single counted write
func (m *Memory) WriteBatch(records map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failed != nil {
		return &StorageError{Key: "batch", Op: "write", Err: m.failed}
	}
	if m.quota > 0 {
		size := 0
		for k, v := range m.data {
			if _, replaced := records[k]; !replaced {
				size += len(v)
			}
		}
		for _, v := range records {
			size += len(v)
		}
		if size > m.quota {
			return &StorageError{Key: "batch", Op: "write", Err: classify(ErrStorageFull, fmt.Errorf("%d bytes exceeds quota of %d", size, m.quota))}
		}
	}

	for k, v := range records {
		m.data[k] = append([]byte(nil), v...)
	}
	m.writes++
	return nil
}
