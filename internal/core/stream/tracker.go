package stream

import (
	"errors"
	"sync"
)

// ErrStreamInFlight is returned when a session already has a response
// being assembled
var ErrStreamInFlight = errors.New("a response is already streaming for this session")

// Tracker allows at most one in-flight stream per session
type Tracker struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]struct{})}
}

// Begin claims the session. The returned release is safe to call more
// than once.
func (t *Tracker) Begin(sessionID string) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.active[sessionID]; busy {
		return nil, ErrStreamInFlight
	}
	t.active[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.active, sessionID)
			t.mu.Unlock()
		})
	}, nil
}

func (t *Tracker) InFlight(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.active[sessionID]
	return busy
}
