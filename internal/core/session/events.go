package session

// EventKind names what changed in the coordinator
type EventKind int

const (
	// EventSessionsChanged: the list, a title, a model or the order changed
	EventSessionsChanged EventKind = iota
	// EventActiveChanged: a different session is now active
	EventActiveChanged
	// EventStreamDelta: the streaming response grew
	EventStreamDelta
	// EventStreamSettled: the response finished, successfully or not
	EventStreamSettled
	// EventNotification: something the user should be told about
	EventNotification
)

func (k EventKind) String() string {
	switch k {
	case EventSessionsChanged:
		return "sessions_changed"
	case EventActiveChanged:
		return "active_changed"
	case EventStreamDelta:
		return "stream_delta"
	case EventStreamSettled:
		return "stream_settled"
	case EventNotification:
		return "notification"
	}
	return "unknown"
}

type Event struct {
	Kind      EventKind
	SessionID string
	// Content is the response text so far for stream events
	Content string
	Failed  bool
	// Message is the notification text
	Message string
	Err     error
}

// Subscribe registers fn for coordinator events and returns a function
// that removes it. Events are delivered after the coordinator lock is
// released, so fn may call back into the coordinator.
func (c *Coordinator) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Coordinator) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.subMu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	c.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
