package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// legacySession is the versionless shape written by early clients: a bare
// map of id to session, messages without position or status, timestamps as
// epoch milliseconds or strings.
type legacySession struct {
	ID       string                   `json:"id"`
	Title    string                   `json:"title"`
	Messages map[string]legacyMessage `json:"messages"`
	Model    string                   `json:"model"`
}

type legacyMessage struct {
	ID            string            `json:"id"`
	Content       string            `json:"content"`
	Role          string            `json:"role"`
	Timestamp     json.RawMessage   `json:"timestamp"`
	CreateAt      json.RawMessage   `json:"createAt"`
	UsedDocuments []json.RawMessage `json:"used_documents"`
}

// migrateLegacy converts the versionless record. Positions are assigned
// from timestamps (then ids) because the old shape has no ordering field.
func migrateLegacy(probe map[string]json.RawMessage) (map[string]*models.Session, error) {
	sessions := make(map[string]*models.Session, len(probe))

	for key, raw := range probe {
		var ls legacySession
		if err := json.Unmarshal(raw, &ls); err != nil {
			return nil, fmt.Errorf("migrate session %s: %w", key, err)
		}
		id := ls.ID
		if id == "" {
			id = key
		}

		s := &models.Session{
			ID:       id,
			Title:    ls.Title,
			Messages: make(map[string]*models.Message, len(ls.Messages)),
			Model:    ls.Model,
		}
		if strings.TrimSpace(s.Title) == "" {
			s.Title = models.DefaultTitle
		}

		type pending struct {
			msg *models.Message
			ts  time.Time
		}
		var msgs []pending
		for msgKey, lm := range ls.Messages {
			msgID := lm.ID
			if msgID == "" {
				msgID = msgKey
			}
			ts := parseLegacyTime(lm.Timestamp)
			if ts.IsZero() {
				ts = parseLegacyTime(lm.CreateAt)
			}
			msgs = append(msgs, pending{
				msg: &models.Message{
					ID:        msgID,
					Role:      models.NormalizeRole(lm.Role),
					Content:   lm.Content,
					Timestamp: ts,
					Sources:   legacySources(lm.UsedDocuments),
					Status:    models.StatusSettled,
				},
				ts: ts,
			})
		}
		sort.SliceStable(msgs, func(i, j int) bool {
			if !msgs[i].ts.Equal(msgs[j].ts) {
				return msgs[i].ts.Before(msgs[j].ts)
			}
			return msgs[i].msg.ID < msgs[j].msg.ID
		})
		for i, p := range msgs {
			p.msg.Position = i
			s.Messages[p.msg.ID] = p.msg
			if s.CreatedAt.IsZero() && !p.ts.IsZero() {
				s.CreatedAt = p.ts
			}
			if p.ts.After(s.UpdatedAt) {
				s.UpdatedAt = p.ts
			}
		}

		sessions[id] = s
	}

	return sessions, nil
}

func parseLegacyTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return time.Time{}
	}
	if n, err := strconv.ParseInt(str, 10, 64); err == nil {
		return time.UnixMilli(n).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t
		}
	}
	return time.Time{}
}

func legacySources(docs []json.RawMessage) []models.SourceRef {
	var refs []models.SourceRef
	for _, raw := range docs {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			refs = append(refs, models.SourceRef{Name: name})
			continue
		}
		var ref models.SourceRef
		if err := json.Unmarshal(raw, &ref); err == nil {
			refs = append(refs, ref)
		}
	}
	return refs
}

// upgrade brings an older versioned envelope up to SchemaVersion, one step
// per version.
func upgrade(from int, sessions map[string]*models.Session) {
	if from < 2 {
		upgradeV1(sessions)
	}
}

// upgradeV1: version 1 messages carried no status or position. Every stored
// message was final, and positions follow the timestamps.
func upgradeV1(sessions map[string]*models.Session) {
	for _, s := range sessions {
		if s == nil {
			continue
		}
		msgs := make([]*models.Message, 0, len(s.Messages))
		positioned := false
		for _, m := range s.Messages {
			if m == nil {
				continue
			}
			if m.Status == "" {
				m.Status = models.StatusSettled
			}
			if m.Position != 0 {
				positioned = true
			}
			msgs = append(msgs, m)
		}
		if positioned {
			continue
		}
		sort.SliceStable(msgs, func(i, j int) bool {
			if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
				return msgs[i].Timestamp.Before(msgs[j].Timestamp)
			}
			return msgs[i].ID < msgs[j].ID
		})
		for i, m := range msgs {
			m.Position = i
		}
	}
}
