package tui

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neilberkman/ragchat/internal/core/session"
)

type errMsg struct {
	err error
}

type routeOpenedMsg struct {
	route session.Route
	err   error
}

type sentMsg struct {
	sessionID string
	err       error
}

type sharedMsg struct {
	link   *session.ShareLink
	copied bool
	err    error
}

type modelsLoadedMsg struct {
	models []string
}

type eventsMsg []session.Event

type clearStatusMsg struct {
	seq int
}

// eventQueue hands coordinator events to the program. Events may be
// published from inside Update, so the subscriber must never block.
type eventQueue struct {
	mu     sync.Mutex
	events []session.Event
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *eventQueue) push(ev session.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []session.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	evs := q.events
	q.events = nil
	return evs
}

func (q *eventQueue) close() {
	q.once.Do(func() { close(q.done) })
}

// wait blocks until events are queued
func (q *eventQueue) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-q.ready:
			return eventsMsg(q.drain())
		case <-q.done:
			return nil
		}
	}
}

func openRoute(coord Coordinator, ctx context.Context, routeID string) tea.Cmd {
	return func() tea.Msg {
		route, err := coord.Open(ctx, routeID)
		return routeOpenedMsg{route: route, err: err}
	}
}

func sendMessage(coord Coordinator, ctx context.Context, sessionID, text string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{sessionID: sessionID, err: coord.SendUserMessage(ctx, text)}
	}
}

func shareSession(coord Coordinator, ctx context.Context, sessionID string) tea.Cmd {
	return func() tea.Msg {
		link, err := coord.ShareSession(ctx, sessionID)
		if err != nil {
			return sharedMsg{err: err}
		}
		copied := clipboard.WriteAll(link.URL) == nil
		return sharedMsg{link: link, copied: copied}
	}
}

func loadModels(coord Coordinator, ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		// failures arrive as a notification event
		list, _ := coord.Models(ctx)
		return modelsLoadedMsg{models: list}
	}
}

func clearStatusAfter(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}
