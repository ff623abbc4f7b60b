package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"syscall"
)

// File stores each key as one file in a directory. Writes go through a
// synced temp file and an atomic rename.
type File struct {
	dir string
}

// NewFile creates the directory if needed
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StorageError{Key: dir, Op: "open", Err: classify(ErrStorageUnavailable, err)}
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Read returns the file contents for key
func (f *File) Read(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Key: key, Op: "read", Err: classify(ErrStorageUnavailable, err)}
	}
	return data, true, nil
}

// Write replaces the file for key
func (f *File) Write(key string, value []byte) error {
	if err := f.write(key, value); err != nil {
		kind := ErrStorageUnavailable
		if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
			kind = ErrStorageFull
		}
		return &StorageError{Key: key, Op: "write", Err: classify(kind, err)}
	}
	return nil
}

func (f *File) write(key string, value []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return f.syncDir()
}

// syncDir makes the rename durable. Filesystems that cannot fsync a
// directory report EINVAL, which is ignored.
func (f *File) syncDir() error {
	d, err := os.Open(f.dir)
	if err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}

// Close is a no-op
func (f *File) Close() error {
	return nil
}
