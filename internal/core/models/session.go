package models

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultTitle is used until a title is derived or set
const DefaultTitle = "New Chat"

// DefaultTitleMaxLen bounds auto-derived titles (in runes)
const DefaultTitleMaxLen = 40

// Session is one persisted conversation thread
type Session struct {
	ID             string              `json:"id" yaml:"id"`
	Title          string              `json:"title" yaml:"title"`
	ManuallyTitled bool                `json:"manually_titled,omitempty" yaml:"manually_titled,omitempty"`
	Messages       map[string]*Message `json:"messages" yaml:"messages"`
	Model          string              `json:"model,omitempty" yaml:"model,omitempty"`
	SharedFrom     string              `json:"shared_from,omitempty" yaml:"shared_from,omitempty"`
	CreatedAt      time.Time           `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" yaml:"updated_at"`
}

// NewSession returns an empty session with the default title
func NewSession(id, model string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Title:     DefaultTitle,
		Messages:  make(map[string]*Message),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks if the session has required fields
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("session title is required")
	}
	return nil
}

// DisplayTitle never returns an empty string
func (s *Session) DisplayTitle() string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// Ordered returns messages sorted by position, then timestamp, then id.
// Map iteration order is never used.
func (s *Session) Ordered() []*Message {
	out := make([]*Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return out
}

// NextPosition is one past the highest position in use
func (s *Session) NextPosition() int {
	next := 0
	for _, m := range s.Messages {
		if m.Position >= next {
			next = m.Position + 1
		}
	}
	return next
}

// FirstHumanMessage returns the earliest human message with content
func (s *Session) FirstHumanMessage() *Message {
	for _, m := range s.Ordered() {
		if m.Role == RoleHuman && strings.TrimSpace(m.Content) != "" {
			return m
		}
	}
	return nil
}

// DeriveTitle builds a title from the first human message, or returns
// DefaultTitle when there is none.
func (s *Session) DeriveTitle(maxLen int) string {
	first := s.FirstHumanMessage()
	if first == nil {
		return DefaultTitle
	}
	return TruncateTitle(first.Content, maxLen)
}

// TruncateTitle collapses whitespace and cuts at a word boundary
func TruncateTitle(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultTitleMaxLen
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	runes := []rune(text)
	truncated := string(runes[:maxLen])
	// Back off to the previous word unless the cut already lands on one
	if runes[maxLen] != ' ' {
		if lastSpace := strings.LastIndex(truncated, " "); lastSpace > len(truncated)/2 {
			truncated = truncated[:lastSpace]
		}
	}
	return truncated + "..."
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = CloneMessages(s.Messages)
	return &c
}

// CloneMessages deep-copies a message mapping
func CloneMessages(in map[string]*Message) map[string]*Message {
	out := make(map[string]*Message, len(in))
	for id, m := range in {
		out[id] = m.Clone()
	}
	return out
}
