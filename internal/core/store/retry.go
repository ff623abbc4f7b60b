package store

import (
	"errors"
	"time"
)

// Retrying retries failed writes a bounded number of times. The session
// core never retries on its own; this wrapper is opt-in via
// store.retry_attempts.
type Retrying struct {
	Store
	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)
}

func NewRetrying(st Store, attempts int, backoff time.Duration) *Retrying {
	return &Retrying{Store: st, attempts: attempts, backoff: backoff, sleep: time.Sleep}
}

// Write retries ErrStorageUnavailable; ErrStorageFull is returned at once
func (r *Retrying) Write(key string, value []byte) error {
	var err error
	delay := r.backoff
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			r.sleep(delay)
			delay *= 2
		}
		err = r.Store.Write(key, value)
		if err == nil || errors.Is(err, ErrStorageFull) {
			return err
		}
	}
	return err
}

// WriteBatch retries like Write
func (r *Retrying) WriteBatch(records map[string][]byte) error {
	var err error
	delay := r.backoff
	for attempt := 0; attempt <= r.attempts; attempt++ {
		if attempt > 0 {
			r.sleep(delay)
			delay *= 2
		}
		err = WriteAll(r.Store, records)
		if err == nil || errors.Is(err, ErrStorageFull) {
			return err
		}
	}
	return err
}
