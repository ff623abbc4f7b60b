package repository

// EventKind names a change to the collection
type EventKind int

const (
	EventLoaded EventKind = iota
	EventCreated
	EventInserted
	EventRenamed
	EventDeleted
	EventMessagesUpdated
	EventModelChanged
	EventReordered
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventCreated:
		return "created"
	case EventInserted:
		return "inserted"
	case EventRenamed:
		return "renamed"
	case EventDeleted:
		return "deleted"
	case EventMessagesUpdated:
		return "messages_updated"
	case EventModelChanged:
		return "model_changed"
	case EventReordered:
		return "reordered"
	}
	return "unknown"
}

// Event is delivered to subscribers after a mutation completes
type Event struct {
	Kind      EventKind
	SessionID string
	// Warning is set when the durable write failed
	Warning error
}

// Subscribe registers fn for change notifications. The returned function
// removes it. Callbacks run outside the repository lock.
func (r *Repository) Subscribe(fn func(Event)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Repository) subscribers() []func(Event) {
	out := make([]func(Event), 0, len(r.subs))
	for i := 0; i < r.nextSub; i++ {
		if fn, ok := r.subs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
