package models

import (
	"errors"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// NormalizeRole maps an external role label onto the internal roles.
// "assistant" and "ai" become assistant, everything else is human.
func NormalizeRole(label string) Role {
	switch label {
	case "assistant", "ai":
		return RoleAssistant
	default:
		return RoleHuman
	}
}

// Status is the lifecycle state of a message
type Status string

const (
	StatusStreaming Status = "streaming"
	StatusSettled   Status = "settled"
)

// InterruptedText replaces the content of a response that was still
// streaming when the process stopped
const InterruptedText = "The response was interrupted before it completed."

// ErrAlreadySettled is returned when a settled message would be mutated
var ErrAlreadySettled = errors.New("message already settled")

// SourceRef is a document reference attached by the assistant
type SourceRef struct {
	DocumentID string `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Snippet    string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Message is a single entry in a session
type Message struct {
	ID        string      `json:"id" yaml:"id"`
	Role      Role        `json:"role" yaml:"role"`
	Content   string      `json:"content" yaml:"content"`
	Position  int         `json:"position" yaml:"position"`
	Timestamp time.Time   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Sources   []SourceRef `json:"sources,omitempty" yaml:"sources,omitempty"`
	Status    Status      `json:"status" yaml:"status"`
	Failed    bool        `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// IsSettled reports whether the content is final
func (m *Message) IsSettled() bool {
	return m.Status != StatusStreaming
}

// Append grows the content of a streaming message
func (m *Message) Append(text string) error {
	if m.IsSettled() {
		return ErrAlreadySettled
	}
	m.Content += text
	return nil
}

// SetPartial replaces the content of a streaming message with a newer snapshot
func (m *Message) SetPartial(content string) error {
	if m.IsSettled() {
		return ErrAlreadySettled
	}
	m.Content = content
	return nil
}

// Settle marks the message final. A failed settle carries error text as content.
func (m *Message) Settle(content string, failed bool) error {
	if m.IsSettled() {
		return ErrAlreadySettled
	}
	m.Content = content
	m.Failed = failed
	m.Status = StatusSettled
	return nil
}

// Clone returns a deep copy
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Sources != nil {
		c.Sources = append([]SourceRef(nil), m.Sources...)
	}
	return &c
}
