package repository

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/store"
)

// Repository owns the in-memory session collection and is the only writer
// to the durable store. Every mutation updates memory first and then issues
// exactly one durable write before returning.
type Repository struct {
	mu    sync.Mutex
	store store.Store
	coll  *models.Collection

	logger             *zap.Logger
	now                func() time.Time
	newID              func() string
	autoTitleOverrides bool
	titleMaxLen        int

	subs    map[int]func(Event)
	nextSub int
	loaded  bool
}

// Option configures a Repository
type Option func(*Repository)

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) { r.newID = gen }
}

// WithAutoTitleOverridesRename makes message updates re-derive the title
// even after a manual rename
func WithAutoTitleOverridesRename(v bool) Option {
	return func(r *Repository) { r.autoTitleOverrides = v }
}

func WithTitleMaxLen(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.titleMaxLen = n
		}
	}
}

// New creates a repository over st. Call Init before use.
func New(st store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:       st,
		coll:        models.NewCollection(),
		logger:      zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		titleMaxLen: models.DefaultTitleMaxLen,
		subs:        make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init loads the persisted collection. A returned *PersistError is a
// warning: the repository is usable with whatever could be recovered.
func (r *Repository) Init() error {
	_, err := r.LoadAll()
	return err
}

// Dispose drops all subscribers. The store is owned by the caller.
func (r *Repository) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[int]func(Event))
	r.loaded = false
	return nil
}

// LoadAll reads the persisted collection, replacing the in-memory one.
// Absent records produce an empty collection.
func (r *Repository) LoadAll() (*models.Collection, error) {
	r.mu.Lock()
	coll, warn := r.load()
	r.coll = coll
	r.loaded = true
	out := coll.Clone()
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, Event{Kind: EventLoaded, Warning: warn})
	return out, warn
}

func (r *Repository) load() (*models.Collection, error) {
	coll := models.NewCollection()
	var warn error
	dirty := false

	raw, ok, err := r.store.Read(KeySessions)
	if err != nil {
		r.logger.Warn("failed to read sessions", zap.Error(err))
		return coll, &PersistError{Op: "load", Err: err}
	}
	if ok {
		sessions, migrated, err := decodeSessions(raw)
		if err != nil {
			backup := fmt.Sprintf("%s.corrupt-%d", KeySessions, r.now().Unix())
			r.logger.Warn("sessions record is unreadable, starting empty",
				zap.String("backup_key", backup), zap.Error(err))
			if werr := r.store.Write(backup, raw); werr != nil {
				r.logger.Warn("failed to back up unreadable sessions", zap.Error(werr))
			}
			warn = &PersistError{Op: "load", Err: err}
		} else {
			if migrated {
				r.logger.Info("migrated legacy sessions record", zap.Int("sessions", len(sessions)))
				dirty = true
			}
			coll.Sessions = sessions
		}
	}

	raw, ok, err = r.store.Read(KeyOrder)
	if err != nil {
		r.logger.Warn("failed to read session order", zap.Error(err))
		warn = &PersistError{Op: "load", Err: err}
	} else if ok {
		order, err := decodeOrder(raw)
		if err != nil {
			r.logger.Warn("session order is unreadable, rebuilding", zap.Error(err))
			dirty = true
		} else {
			coll.Order = order
		}
	}

	for id, s := range coll.Sessions {
		if s == nil {
			delete(coll.Sessions, id)
			dirty = true
			continue
		}
		if s.ID == "" {
			s.ID = id
		}
		if s.Messages == nil {
			s.Messages = make(map[string]*models.Message)
		}
		for mid, m := range s.Messages {
			if m == nil {
				delete(s.Messages, mid)
				dirty = true
			}
		}
		if strings.TrimSpace(s.Title) == "" {
			s.Title = models.DefaultTitle
			dirty = true
		}
		if settleInterrupted(s) {
			dirty = true
		}
	}

	if coll.Reconcile() {
		dirty = true
	}

	if dirty && warn == nil {
		if err := r.writeAll("load", coll); err != nil {
			warn = err
		}
	}
	return coll, warn
}

// settleInterrupted finalises messages left streaming by a previous process
func settleInterrupted(s *models.Session) bool {
	changed := false
	for _, m := range s.Messages {
		if m.IsSettled() {
			continue
		}
		content := m.Content
		if strings.TrimSpace(content) == "" {
			content = models.InterruptedText
		}
		_ = m.Settle(content, true)
		changed = true
	}
	return changed
}

// CreateSession adds an empty session at the end of the order
func (r *Repository) CreateSession(initialModel string) (*models.Session, error) {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return nil, ErrNotInitialized
	}

	id := r.newID()
	for r.coll.Sessions[id] != nil {
		id = r.newID()
	}
	s := models.NewSession(id, initialModel, r.now())
	r.coll.Sessions[id] = s
	r.coll.Order = append(r.coll.Order, id)

	warn := r.writeAll("create", r.coll)
	out := s.Clone()
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, Event{Kind: EventCreated, SessionID: id, Warning: warn})
	return out, warn
}

// InsertSession adds a fully formed session, typically an import. The
// session is appended to the end of the order.
func (r *Repository) InsertSession(s *models.Session) error {
	if s == nil {
		return fmt.Errorf("insert session: nil session")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	if _, exists := r.coll.Sessions[s.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
	}

	c := s.Clone()
	if c.Messages == nil {
		c.Messages = make(map[string]*models.Message)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	r.coll.Sessions[c.ID] = c
	r.coll.Order = append(r.coll.Order, c.ID)

	warn := r.writeAll("insert", r.coll)
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, Event{Kind: EventInserted, SessionID: c.ID, Warning: warn})
	return warn
}

// RenameSession sets a manual title. A blank title is ignored.
func (r *Repository) RenameSession(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	return r.mutateSession(EventRenamed, "rename", id, func(s *models.Session) {
		s.Title = title
		s.ManuallyTitled = true
	})
}

// UpdateMessages replaces the message mapping of a session
func (r *Repository) UpdateMessages(id string, msgs map[string]*models.Message) error {
	return r.mutateSession(EventMessagesUpdated, "update messages", id, func(s *models.Session) {
		s.Messages = models.CloneMessages(msgs)
		if !s.ManuallyTitled || r.autoTitleOverrides {
			s.Title = s.DeriveTitle(r.titleMaxLen)
			if r.autoTitleOverrides {
				s.ManuallyTitled = false
			}
		}
	})
}

// SetModel records the selected model for one session
func (r *Repository) SetModel(id, model string) error {
	return r.mutateSession(EventModelChanged, "set model", id, func(s *models.Session) {
		s.Model = model
	})
}

func (r *Repository) mutateSession(kind EventKind, op, id string, apply func(*models.Session)) error {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	s, ok := r.coll.Sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s %s: %w", op, id, ErrSessionNotFound)
	}

	apply(s)
	s.UpdatedAt = r.now()

	warn := r.writeSessions(op)
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, Event{Kind: kind, SessionID: id, Warning: warn})
	return warn
}

// DeleteSession removes a session and its order entry. Choosing what to
// show next is up to the caller.
func (r *Repository) DeleteSession(id string) error {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	if _, ok := r.coll.Sessions[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrSessionNotFound)
	}

	delete(r.coll.Sessions, id)
	order := r.coll.Order[:0:0]
	for _, o := range r.coll.Order {
		if o != id {
			order = append(order, o)
		}
	}
	r.coll.Order = order

	warn := r.writeAll("delete", r.coll)
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, Event{Kind: EventDeleted, SessionID: id, Warning: warn})
	return warn
}

// Reorder replaces the order wholesale. Unknown ids are dropped and
// sessions left out are appended, so the order always covers the
// collection exactly once. Only the order record is written.
func (r *Repository) Reorder(ids []string) error {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return ErrNotInitialized
	}

	r.coll.Order = append([]string(nil), ids...)
	r.coll.Reconcile()

	var warn error
	data, err := encodeOrder(r.coll.Order)
	if err != nil {
		warn = r.persistFailed("reorder", err)
	} else if err := r.store.Write(KeyOrder, data); err != nil {
		warn = r.persistFailed("reorder", err)
	}
	subs := r.subscribers()
	r.mu.Unlock()

	notify(subs, Event{Kind: EventReordered, Warning: warn})
	return warn
}

// Get returns a copy of one session
func (r *Repository) Get(id string) (*models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.coll.Sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// List returns copies of all sessions in display order
func (r *Repository) List() []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	ordered := r.coll.Ordered()
	out := make([]*models.Session, len(ordered))
	for i, s := range ordered {
		out[i] = s.Clone()
	}
	return out
}

func (r *Repository) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.coll.Order...)
}

func (r *Repository) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.coll.Sessions[id]
	return ok
}

func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.coll.Sessions)
}

// writeAll persists both records as one batch. Caller holds r.mu.
func (r *Repository) writeAll(op string, coll *models.Collection) error {
	sessions, err := encodeSessions(coll.Sessions)
	if err != nil {
		return r.persistFailed(op, err)
	}
	order, err := encodeOrder(coll.Order)
	if err != nil {
		return r.persistFailed(op, err)
	}
	records := map[string][]byte{KeySessions: sessions, KeyOrder: order}
	if err := store.WriteAll(r.store, records); err != nil {
		return r.persistFailed(op, err)
	}
	return nil
}

// writeSessions persists the sessions record only. Caller holds r.mu.
func (r *Repository) writeSessions(op string) error {
	data, err := encodeSessions(r.coll.Sessions)
	if err != nil {
		return r.persistFailed(op, err)
	}
	if err := r.store.Write(KeySessions, data); err != nil {
		return r.persistFailed(op, err)
	}
	return nil
}

func (r *Repository) persistFailed(op string, err error) error {
	r.logger.Warn("durable write failed, keeping in-memory state",
		zap.String("op", op), zap.Error(err))
	return &PersistError{Op: op, Err: err}
}
