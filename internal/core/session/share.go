package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/backend"
	"github.com/neilberkman/ragchat/internal/core/repository"
)

// ShareLink is a published conversation
type ShareLink struct {
	ChatID string
	URL    string
}

// ShareSession publishes a session through the share endpoint and renders
// its link from the configured template
func (c *Coordinator) ShareSession(ctx context.Context, id string) (*ShareLink, error) {
	s, ok := c.repo.Get(id)
	if !ok {
		return nil, fmt.Errorf("share %s: %w", id, repository.ErrSessionNotFound)
	}
	if c.backend == nil {
		return nil, fmt.Errorf("share %s: no backend configured", id)
	}

	chatID, err := c.backend.CreateShare(ctx, id, backend.History(s.Ordered()))
	if err != nil {
		c.publish(Event{Kind: EventNotification, SessionID: id, Message: "Could not share this chat.", Err: err})
		return nil, err
	}

	templateData := map[string]interface{}{
		"base_url":      strings.TrimRight(c.shareBaseURL, "/"),
		"chat_id":       chatID,
		"session_id":    id,
		"title":         s.DisplayTitle(),
		"message_count": len(s.Messages),
		"time_since":    humanize.Time(s.UpdatedAt),
		"model":         s.Model,
		"has_model":     s.Model != "",
	}

	link, err := mustache.Render(c.shareTemplate, templateData)
	if err != nil {
		// Fall back to the plain link if the template is broken
		c.logger.Warn("share link template failed", zap.Error(err))
		link = fmt.Sprintf("%s/chat/%s", strings.TrimRight(c.shareBaseURL, "/"), chatID)
	}

	c.logger.Info("shared session", zap.String("session_id", id), zap.String("chat_id", chatID))
	return &ShareLink{ChatID: chatID, URL: strings.TrimSpace(link)}, nil
}
