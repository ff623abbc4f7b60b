// Package session decides which conversation is active, routes user input
// through the streaming assembler and keeps the repository up to date.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/backend"
	"github.com/neilberkman/ragchat/internal/core/config"
	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/repository"
	"github.com/neilberkman/ragchat/internal/core/stream"
)

// State of the active-session state machine
type State int

const (
	NoActiveSession State = iota
	ActiveKnown
	ActiveUnknown
)

func (s State) String() string {
	switch s {
	case ActiveKnown:
		return "active"
	case ActiveUnknown:
		return "unknown"
	}
	return "none"
}

// Route is the outcome of opening a navigational identifier
type Route struct {
	SessionID string
	State     State
	// Redirected is set when the requested id could not be opened and the
	// default route was used instead
	Redirected bool
	Created    bool
	Imported   bool
	// ImportErr explains a redirect after a failed import
	ImportErr error
}

// Backend is the remote assistant
type Backend interface {
	Send(ctx context.Context, req backend.SendRequest) (io.ReadCloser, error)
	Models(ctx context.Context) ([]string, error)
	CreateShare(ctx context.Context, sessionID string, history []backend.HistoryEntry) (string, error)
}

// Importer resolves unknown ids to shared chats
type Importer interface {
	Import(ctx context.Context, externalID string) (*models.Session, bool, error)
}

// Coordinator owns the notion of the active session
type Coordinator struct {
	mu       sync.Mutex
	repo     *repository.Repository
	backend  Backend
	importer Importer
	asm      *stream.Assembler
	tracker  *stream.Tracker
	logger   *zap.Logger
	now      func() time.Time
	newMsgID func() string

	defaultModel  string
	shareTemplate string
	shareBaseURL  string

	state  State
	active string
	// in-flight streams: cancel funcs and view-only placeholders
	cancels map[string]context.CancelFunc
	pending map[string]*models.Message

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithDefaultModel(model string) Option {
	return func(c *Coordinator) { c.defaultModel = model }
}

// WithShareLink sets the mustache template and base url for share links
func WithShareLink(template, baseURL string) Option {
	return func(c *Coordinator) {
		if template != "" {
			c.shareTemplate = template
		}
		c.shareBaseURL = baseURL
	}
}

func WithAssembler(a *stream.Assembler) Option {
	return func(c *Coordinator) { c.asm = a }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithMessageIDs(gen func() string) Option {
	return func(c *Coordinator) { c.newMsgID = gen }
}

// New creates a coordinator over an initialised repository. backend and
// importer may be nil for offline use.
func New(repo *repository.Repository, be Backend, imp Importer, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:          repo,
		backend:       be,
		importer:      imp,
		tracker:       stream.NewTracker(),
		logger:        zap.NewNop(),
		now:           time.Now,
		newMsgID:      uuid.NewString,
		shareTemplate: config.DefaultShareLinkTemplate,
		cancels:       make(map[string]context.CancelFunc),
		pending:       make(map[string]*models.Message),
		subs:          make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.asm == nil {
		c.asm = stream.New(stream.WithErrorText(failureText))
	}
	return c
}

// Close abandons every in-flight stream
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.cancels {
		cancel()
		delete(c.cancels, id)
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Open resolves a navigational identifier. An empty id opens the first
// session, creating one when there are none. An unknown id is imported as
// a shared chat; if that fails the default route is used and the reason is
// reported in Route.ImportErr and as a notification.
func (c *Coordinator) Open(ctx context.Context, routeID string) (Route, error) {
	routeID = strings.TrimSpace(routeID)
	var events []Event

	c.mu.Lock()
	route, err := c.openLocked(ctx, routeID, &events)
	c.mu.Unlock()

	c.publish(events...)
	return route, err
}

func (c *Coordinator) openLocked(ctx context.Context, routeID string, events *[]Event) (Route, error) {
	if routeID == "" {
		return c.openDefaultLocked(events)
	}

	if c.repo.Has(routeID) {
		c.activateLocked(routeID, events)
		return Route{SessionID: routeID, State: ActiveKnown}, nil
	}

	c.state = ActiveUnknown
	c.logger.Info("unknown session id, trying shared chat import", zap.String("id", routeID))

	importErr := errors.New("shared chats are not available")
	if c.importer != nil {
		s, created, err := c.importer.Import(ctx, routeID)
		if s != nil {
			if err != nil {
				*events = append(*events, warning(s.ID, err))
			}
			if created {
				*events = append(*events, Event{Kind: EventSessionsChanged, SessionID: s.ID})
			}
			c.activateLocked(s.ID, events)
			return Route{SessionID: s.ID, State: ActiveKnown, Imported: created}, nil
		}
		importErr = err
	}

	c.logger.Warn("could not open session, redirecting", zap.String("id", routeID), zap.Error(importErr))
	*events = append(*events, Event{
		Kind:      EventNotification,
		SessionID: routeID,
		Message:   fmt.Sprintf("Could not open chat %s.", routeID),
		Err:       importErr,
	})

	route, err := c.openDefaultLocked(events)
	route.Redirected = true
	route.ImportErr = importErr
	return route, err
}

func (c *Coordinator) openDefaultLocked(events *[]Event) (Route, error) {
	if order := c.repo.Order(); len(order) > 0 {
		c.activateLocked(order[0], events)
		return Route{SessionID: order[0], State: ActiveKnown}, nil
	}

	s, err := c.createLocked(events)
	if s == nil {
		c.state = NoActiveSession
		return Route{State: NoActiveSession}, err
	}
	return Route{SessionID: s.ID, State: ActiveKnown, Created: true}, nil
}

// createLocked makes a new session and activates it. A storage warning
// still returns the session.
func (c *Coordinator) createLocked(events *[]Event) (*models.Session, error) {
	s, err := c.repo.CreateSession(c.defaultModel)
	if s == nil {
		return nil, err
	}
	if err != nil {
		*events = append(*events, warning(s.ID, err))
	}
	*events = append(*events, Event{Kind: EventSessionsChanged, SessionID: s.ID})
	c.activateLocked(s.ID, events)
	return s, nil
}

// activateLocked switches the active session, abandoning the stream of
// the one being left
func (c *Coordinator) activateLocked(id string, events *[]Event) {
	if c.active != "" && c.active != id {
		c.abandonLocked(c.active)
	}
	changed := c.active != id || c.state != ActiveKnown
	c.active = id
	c.state = ActiveKnown
	if changed {
		*events = append(*events, Event{Kind: EventActiveChanged, SessionID: id})
	}
}

func (c *Coordinator) abandonLocked(id string) {
	if cancel, ok := c.cancels[id]; ok {
		c.logger.Info("abandoning in-flight response", zap.String("session_id", id))
		cancel()
		delete(c.cancels, id)
	}
}

// Select makes a known session active
func (c *Coordinator) Select(id string) error {
	var events []Event
	c.mu.Lock()
	if !c.repo.Has(id) {
		c.mu.Unlock()
		return fmt.Errorf("select %s: %w", id, repository.ErrSessionNotFound)
	}
	c.activateLocked(id, &events)
	c.mu.Unlock()

	c.publish(events...)
	return nil
}

// ActiveSession returns the active session, including the response that
// is still streaming
func (c *Coordinator) ActiveSession() (*models.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return nil, false
	}
	s, ok := c.repo.Get(c.active)
	if !ok {
		return nil, false
	}
	if p, ok := c.pending[c.active]; ok {
		s.Messages[p.ID] = p.Clone()
	}
	return s, true
}

// ListSessions returns all sessions in display order
func (c *Coordinator) ListSessions() []*models.Session {
	return c.repo.List()
}

// CreateSession starts a new chat and makes it active
func (c *Coordinator) CreateSession() (*models.Session, error) {
	var events []Event
	c.mu.Lock()
	s, err := c.createLocked(&events)
	c.mu.Unlock()

	c.publish(events...)
	if s == nil {
		return nil, err
	}
	return s, firstWarning(events)
}

// DeleteSession removes a session. Deleting the active one activates the
// first remaining session, or a new one when none remain.
func (c *Coordinator) DeleteSession(id string) error {
	var events []Event
	c.mu.Lock()
	err := c.repo.DeleteSession(id)
	if err != nil && !repository.IsWarning(err) {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		events = append(events, warning(id, err))
	}
	events = append(events, Event{Kind: EventSessionsChanged, SessionID: id})

	c.abandonLocked(id)
	if c.active == id {
		c.active = ""
		c.state = NoActiveSession
		if _, oerr := c.openDefaultLocked(&events); oerr != nil && err == nil {
			err = oerr
		}
	}
	c.mu.Unlock()

	c.publish(events...)
	return err
}

// RenameSession sets a manual title. Blank titles are ignored.
func (c *Coordinator) RenameSession(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return nil
	}
	return c.mutate(id, func() error { return c.repo.RenameSession(id, title) })
}

// SelectModel sets the model used for one session
func (c *Coordinator) SelectModel(id, model string) error {
	return c.mutate(id, func() error { return c.repo.SetModel(id, strings.TrimSpace(model)) })
}

// ReorderSessions replaces the display order
func (c *Coordinator) ReorderSessions(ids []string) error {
	return c.mutate("", func() error { return c.repo.Reorder(ids) })
}

// Reorder lets the coordinator act as a reorder.Reorderer
func (c *Coordinator) Reorder(ids []string) error {
	return c.ReorderSessions(ids)
}

func (c *Coordinator) mutate(id string, fn func() error) error {
	err := fn()
	if err != nil && !repository.IsWarning(err) {
		return err
	}
	events := []Event{{Kind: EventSessionsChanged, SessionID: id}}
	if err != nil {
		events = append([]Event{warning(id, err)}, events...)
	}
	c.publish(events...)
	return err
}

// Models lists the models offered by the backend. Failures give an empty
// list and a notification.
func (c *Coordinator) Models(ctx context.Context) ([]string, error) {
	if c.backend == nil {
		return []string{}, nil
	}
	list, err := c.backend.Models(ctx)
	if err != nil {
		c.publish(Event{Kind: EventNotification, Message: "Could not load the model list.", Err: err})
	}
	return list, err
}

func warning(id string, err error) Event {
	return Event{
		Kind:      EventNotification,
		SessionID: id,
		Message:   "Changes could not be saved and will be lost when ragchat exits.",
		Err:       err,
	}
}

func firstWarning(events []Event) error {
	for _, ev := range events {
		if ev.Kind == EventNotification && repository.IsWarning(ev.Err) {
			return ev.Err
		}
	}
	return nil
}

// failureText is the settled content of a response that failed
func failureText(err error) string {
	var nerr *backend.NetworkError
	if errors.As(err, &nerr) && nerr.Message != "" {
		return fmt.Sprintf("%s (%s)", stream.ErrorText, nerr.Message)
	}
	return stream.ErrorText
}
