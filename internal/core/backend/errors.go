package backend

import (
	"fmt"
)

// NetworkError reports a failed or non-success call to the backend
type NetworkError struct {
	Op      string // "send", "models", "share", "fetch share"
	Status  int    // HTTP status, 0 when no response arrived
	Message string // error text from the response body, if any
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": request failed"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
