package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/neilberkman/ragchat/internal/core/filter"
	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/reorder"
	"github.com/neilberkman/ragchat/internal/core/repository"
	"github.com/neilberkman/ragchat/internal/core/session"
)

// Coordinator is what the TUI needs from the session coordinator
type Coordinator interface {
	Open(ctx context.Context, routeID string) (session.Route, error)
	Select(id string) error
	ActiveID() string
	ActiveSession() (*models.Session, bool)
	ListSessions() []*models.Session
	CreateSession() (*models.Session, error)
	DeleteSession(id string) error
	RenameSession(id, title string) error
	SelectModel(id, model string) error
	Reorder(ids []string) error
	SendUserMessage(ctx context.Context, text string) error
	ShareSession(ctx context.Context, id string) (*session.ShareLink, error)
	Models(ctx context.Context) ([]string, error)
	Subscribe(fn func(session.Event)) func()
}

type Options struct {
	// Route is opened on start: a session id, a shared chat id, or empty
	// for the first session
	Route  string
	Logger *zap.Logger
}

type viewMode int

const (
	chatView viewMode = iota
	renameView
	filterView
	confirmDeleteView
	helpView
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

const statusTimeout = 5 * time.Second

type Model struct {
	coord  Coordinator
	opts   Options
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	queue  *eventQueue
	unsub  func()
	keys   keyMap

	mode   viewMode
	focus  focusArea
	width  int
	height int

	viewport viewport.Model
	input    textinput.Model
	prompt   textinput.Model
	spinner  spinner.Model
	help     help.Model

	// Sidebar
	sessions   []*models.Session // as displayed, filter applied
	cursor     int
	offset     int
	filterText string
	drag       *reorder.Drag
	target     string // session being renamed or deleted

	// Active chat
	active      *models.Session
	streamingID string
	modelList   []string

	status      string
	statusErr   bool
	statusSeq   int
	initialized bool
}

// New creates the TUI model and subscribes it to coordinator events
func New(coord Coordinator, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Placeholder = "Ask something..."
	input.Prompt = "› "
	input.CharLimit = 0
	input.Focus()

	prompt := textinput.New()
	prompt.CharLimit = 200

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ctx, cancel := context.WithCancel(context.Background())
	queue := newEventQueue()

	m := Model{
		coord:    coord,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		queue:    queue,
		keys:     defaultKeyMap(),
		viewport: viewport.New(0, 0),
		input:    input,
		prompt:   prompt,
		spinner:  sp,
		help:     help.New(),
	}
	m.unsub = coord.Subscribe(queue.push)
	m.refresh()
	return m
}

// Close unsubscribes from the coordinator and abandons pending commands
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
	m.queue.close()
	m.cancel()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		openRoute(m.coord, m.ctx, m.opts.Route),
		loadModels(m.coord, m.ctx),
		m.queue.wait(),
		m.spinner.Tick,
		textinput.Blink,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m = m.resize()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.Close()
			return m, tea.Quit
		}

		// Mode-specific key handling
		switch m.mode {
		case renameView, filterView:
			return m.updatePrompt(msg)
		case confirmDeleteView:
			return m.updateConfirmDelete(msg)
		case helpView:
			return m.updateHelp(msg)
		}
		return m.updateChat(msg)

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case eventsMsg:
		for _, ev := range msg {
			m = m.applyEvent(ev)
		}
		m.refresh()
		return m, tea.Batch(m.queue.wait(), m.statusTimer())

	case routeOpenedMsg:
		m.initialized = true
		if msg.err != nil && !repository.IsWarning(msg.err) {
			m.fail(msg.err)
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, m.statusTimer()

	case sentMsg:
		if m.streamingID == msg.sessionID {
			m.streamingID = ""
		}
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.logger.Debug("send finished with error", zap.String("session_id", msg.sessionID), zap.Error(msg.err))
		}
		m.refresh()
		return m, nil

	case sharedMsg:
		if msg.err != nil {
			m.fail(fmt.Errorf("could not share: %w", msg.err))
		} else if msg.copied {
			m.setStatus("Link copied: " + msg.link.URL)
		} else {
			m.setStatus("Share link: " + msg.link.URL)
		}
		return m, m.statusTimer()

	case modelsLoadedMsg:
		m.modelList = msg.models
		return m, nil

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
			m.statusErr = false
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streamingID != "" {
			m.renderChat()
		}
		return m, cmd

	case errMsg:
		m.fail(msg.err)
		return m, m.statusTimer()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) applyEvent(ev session.Event) Model {
	switch ev.Kind {
	case session.EventNotification:
		text := ev.Message
		if ev.Err != nil {
			text = fmt.Sprintf("%s (%v)", ev.Message, ev.Err)
		}
		m.setError(text)
	case session.EventStreamSettled:
		if ev.SessionID == m.streamingID {
			m.streamingID = ""
		}
	case session.EventActiveChanged:
		m.viewport.GotoBottom()
	}
	return m
}

// refresh reloads the sidebar and active chat from the coordinator
func (m *Model) refresh() {
	all := m.coord.ListSessions()
	if m.drag != nil {
		all = arrange(all, m.drag.Order())
	}
	m.sessions = filter.Apply(all, filter.Parse(m.filterText, time.Now()))
	if m.cursor >= len(m.sessions) {
		m.cursor = max(0, len(m.sessions)-1)
	}

	m.active = nil
	if s, ok := m.coord.ActiveSession(); ok {
		m.active = s
	}
	m.renderChat()
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
	m.statusSeq++
}

func (m *Model) setError(text string) {
	m.status = text
	m.statusErr = true
	m.statusSeq++
}

func (m *Model) fail(err error) {
	m.logger.Warn("tui error", zap.Error(err))
	m.setError(err.Error())
}

func (m Model) statusTimer() tea.Cmd {
	if m.status == "" {
		return nil
	}
	return clearStatusAfter(statusTimeout, m.statusSeq)
}

func (m Model) View() string {
	if m.width == 0 || !m.initialized {
		return "Loading..."
	}
	if m.mode == helpView {
		return m.viewHelp()
	}
	return m.viewLayout()
}

// arrange returns sessions in the given id order
func arrange(sessions []*models.Session, order []string) []*models.Session {
	byID := make(map[string]*models.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}
	out := make([]*models.Session, 0, len(order))
	for _, id := range order {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

func ids(sessions []*models.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
