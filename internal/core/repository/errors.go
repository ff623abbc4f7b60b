package repository

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session already exists")
	ErrNotInitialized   = errors.New("repository not initialized")
)

// PersistError reports a durable write or read that failed. The in-memory
// state has already been updated and stays authoritative; callers surface
// it as a warning.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// IsWarning reports whether err is a storage failure that left the
// in-memory state intact
func IsWarning(err error) bool {
	var perr *PersistError
	return errors.As(err, &perr)
}
