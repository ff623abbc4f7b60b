// Package filter narrows a session list by text, model and activity date
package filter

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// Filter is a parsed session query
type Filter struct {
	Query  string // matched against titles and message text
	Model  string
	After  time.Time
	Before time.Time
}

// HasAfter reports whether an after bound is set
func (f Filter) HasAfter() bool { return !f.After.IsZero() }

// HasBefore reports whether a before bound is set
func (f Filter) HasBefore() bool { return !f.Before.IsZero() }

// Empty reports whether the filter matches everything
func (f Filter) Empty() bool {
	return f.Query == "" && f.Model == "" && !f.HasAfter() && !f.HasBefore()
}

// Parse extracts filters from a query string relative to now.
// Supports:
//   - model:<name>
//   - since:yesterday, after:2024-11-01, before:"last week" style dates
//     (use a hyphen for multi-word dates: since:last-week)
//
// Everything else is free text.
func Parse(query string, now time.Time) Filter {
	var f Filter
	var text []string

	for _, token := range strings.Fields(query) {
		key, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			text = append(text, token)
			continue
		}
		switch strings.ToLower(key) {
		case "model":
			f.Model = value
		case "since", "after", "date":
			if t, ok := ParseDate(value, now); ok {
				f.After = t
			}
		case "before":
			if t, ok := ParseDate(value, now); ok {
				f.Before = t
			}
		default:
			text = append(text, token)
		}
	}

	f.Query = strings.Join(text, " ")
	return f
}

// ParseDate understands natural language ("yesterday", "3 days ago",
// "last week") and a few fixed layouts
func ParseDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	if r, err := w.Parse(strings.ReplaceAll(s, "-", " "), now); err == nil && r != nil {
		return r.Time, true
	}
	return time.Time{}, false
}

// Match reports whether s satisfies every part of f
func (f Filter) Match(s *models.Session) bool {
	if f.Model != "" && !strings.EqualFold(s.Model, f.Model) {
		return false
	}
	if f.HasAfter() && s.UpdatedAt.Before(f.After) {
		return false
	}
	if f.HasBefore() && !s.UpdatedAt.Before(f.Before) {
		return false
	}
	if f.Query == "" {
		return true
	}

	q := strings.ToLower(f.Query)
	if strings.Contains(strings.ToLower(s.DisplayTitle()), q) {
		return true
	}
	for _, m := range s.Messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}

// Apply returns the sessions matching f, keeping their order
func Apply(sessions []*models.Session, f Filter) []*models.Session {
	if f.Empty() {
		return sessions
	}
	out := make([]*models.Session, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
