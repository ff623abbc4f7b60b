// Package transcript is the wire format of a shared chat: the body of the
// share-fetch endpoint and of exported transcript files.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound means no transcript exists for the identifier
	ErrNotFound = errors.New("transcript not found")
	// ErrMalformed means the transcript could not be decoded or validated
	ErrMalformed = errors.New("malformed transcript")
)

// Transcript is a shared conversation
type Transcript struct {
	ChatID  string  `json:"chatId" validate:"required"`
	History []Entry `json:"history" validate:"required,dive"`
}

// Entry is one turn of a conversation
type Entry struct {
	Content       string     `json:"content"`
	Role          string     `json:"role"`
	Timestamp     *Time      `json:"timestamp,omitempty"`
	UsedDocuments []Document `json:"used_documents,omitempty" validate:"omitempty,dive"`
}

// Document is a source reference. The wire form is either a bare name or
// an object.
type Document struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		d.Name = name
		return nil
	}
	type plain Document
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Document(p)
	return nil
}

// Time accepts RFC 3339 strings or epoch milliseconds
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.UnixMilli(n).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields
func (t *Transcript) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Parse decodes and validates a transcript
func Parse(data []byte) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseFile reads a transcript from disk
func ParseFile(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return Parse(data)
}
