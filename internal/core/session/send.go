package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/backend"
	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/repository"
	"github.com/neilberkman/ragchat/internal/core/stream"
)

var (
	// ErrNoBackend is returned when sending without a configured backend
	ErrNoBackend = errors.New("no backend configured")
	// ErrStreamInFlight is returned for a send while a reply is streaming
	ErrStreamInFlight = stream.ErrStreamInFlight
)

// SendUserMessage adds text to the active session and streams the reply.
// It blocks until the reply settles or is abandoned. The human message is
// saved right away; the assistant message is saved once settled, and only
// if its session is still active. A failed reply is saved with the error
// text and the *backend.NetworkError is returned.
func (c *Coordinator) SendUserMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.backend == nil {
		return ErrNoBackend
	}

	var events []Event
	c.mu.Lock()
	if c.active == "" || !c.repo.Has(c.active) {
		if _, err := c.openDefaultLocked(&events); err != nil && !repository.IsWarning(err) {
			c.mu.Unlock()
			c.publish(events...)
			return err
		}
	}
	id := c.active

	release, err := c.tracker.Begin(id)
	if err != nil {
		c.mu.Unlock()
		c.publish(events...)
		return err
	}
	defer release()

	s, _ := c.repo.Get(id)
	history := backend.History(s.Ordered())

	now := c.now()
	human := &models.Message{
		ID:        c.newMsgID(),
		Role:      models.RoleHuman,
		Content:   text,
		Position:  s.NextPosition(),
		Timestamp: now,
		Status:    models.StatusSettled,
	}
	msgs := s.Messages
	msgs[human.ID] = human
	if err := c.repo.UpdateMessages(id, msgs); err != nil {
		events = append(events, warning(id, err))
	}
	events = append(events, Event{Kind: EventSessionsChanged, SessionID: id})

	reply := &models.Message{
		ID:        c.newMsgID(),
		Role:      models.RoleAssistant,
		Position:  human.Position + 1,
		Timestamp: now,
		Status:    models.StatusStreaming,
	}
	c.pending[id] = reply

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancels[id] = cancel
	model := s.Model
	c.mu.Unlock()

	c.publish(events...)

	body, sendErr := c.backend.Send(streamCtx, backend.SendRequest{
		Message:   text,
		SessionID: id,
		History:   history,
		Model:     model,
	})

	var result stream.Result
	if sendErr != nil {
		result = stream.Result{Content: failureText(sendErr), Failed: true, Err: sendErr}
	} else {
		result = c.asm.Assemble(streamCtx, body, func(snap stream.Snapshot) {
			if snap.Final {
				return
			}
			c.mu.Lock()
			if p, ok := c.pending[id]; ok {
				_ = p.SetPartial(snap.Content)
			}
			c.mu.Unlock()
			c.publish(Event{Kind: EventStreamDelta, SessionID: id, Content: snap.Content})
		})
		_ = body.Close()
	}

	return c.settle(streamCtx, id, reply, result)
}

// settle finalises the reply and commits it if its session is still the
// active one and the stream was not abandoned
func (c *Coordinator) settle(streamCtx context.Context, id string, reply *models.Message, result stream.Result) error {
	var events []Event

	c.mu.Lock()
	delete(c.pending, id)
	delete(c.cancels, id)
	abandoned := streamCtx.Err() != nil
	_ = reply.Settle(result.Content, result.Failed)

	if abandoned || c.active != id {
		c.mu.Unlock()
		c.logger.Info("discarding response for inactive session", zap.String("session_id", id))
		return nil
	}

	s, ok := c.repo.Get(id)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	msgs := s.Messages
	msgs[reply.ID] = reply
	if err := c.repo.UpdateMessages(id, msgs); err != nil {
		events = append(events, warning(id, err))
	}
	c.mu.Unlock()

	events = append(events,
		Event{Kind: EventStreamSettled, SessionID: id, Content: reply.Content, Failed: reply.Failed},
		Event{Kind: EventSessionsChanged, SessionID: id},
	)
	if result.Failed {
		c.logger.Warn("response failed", zap.String("session_id", id), zap.Error(result.Err))
		events = append(events, Event{Kind: EventNotification, SessionID: id, Message: stream.ErrorText, Err: result.Err})
	}
	c.publish(events...)

	if result.Failed {
		return result.Err
	}
	return firstWarning(events)
}
