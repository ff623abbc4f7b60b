package repository

import (
	"encoding/json"
	"fmt"

	"github.com/neilberkman/ragchat/internal/core/models"
)

// Persisted record keys. Their shapes are versioned through the sessions
// envelope, the keys themselves never change.
const (
	KeySessions = "chat_sessions"
	KeyOrder    = "chat_session_order"
)

// SchemaVersion is the current sessions record version
const SchemaVersion = 2

type sessionsRecord struct {
	Version  int                        `json:"version"`
	Sessions map[string]*models.Session `json:"sessions"`
}

func encodeSessions(sessions map[string]*models.Session) ([]byte, error) {
	data, err := json.Marshal(sessionsRecord{Version: SchemaVersion, Sessions: sessions})
	if err != nil {
		return nil, fmt.Errorf("encode sessions: %w", err)
	}
	return data, nil
}

func encodeOrder(order []string) ([]byte, error) {
	if order == nil {
		order = []string{}
	}
	data, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	return data, nil
}

// decodeSessions reads either a versioned envelope or the legacy bare map.
// migrated reports that the record must be rewritten.
func decodeSessions(data []byte) (sessions map[string]*models.Session, migrated bool, err error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, false, fmt.Errorf("decode sessions: %w", err)
	}

	if _, hasVersion := probe["version"]; !hasVersion {
		sessions, err = migrateLegacy(probe)
		if err != nil {
			return nil, false, err
		}
		return sessions, true, nil
	}

	var rec sessionsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decode sessions: %w", err)
	}
	if rec.Sessions == nil {
		rec.Sessions = make(map[string]*models.Session)
	}
	if rec.Version < SchemaVersion {
		upgrade(rec.Version, rec.Sessions)
		return rec.Sessions, true, nil
	}
	return rec.Sessions, false, nil
}

func decodeOrder(data []byte) ([]string, error) {
	var order []string
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}
