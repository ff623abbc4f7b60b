package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/neilberkman/ragchat/internal/core/models"
	"github.com/neilberkman/ragchat/internal/core/repository"
)

func (m Model) sidebarWidth() int {
	return min(36, max(20, m.width/3))
}

func (m Model) bodyHeight() int {
	return max(3, m.height-2) // input line + status line
}

func (m Model) chatWidth() int {
	return max(10, m.width-m.sidebarWidth()-1)
}

func (m Model) resize() Model {
	m.viewport.Width = m.chatWidth()
	m.viewport.Height = max(1, m.bodyHeight()-2)
	m.input.Width = max(10, m.width-4)
	m.prompt.Width = max(10, m.width-20)
	m.renderChat()
	return m
}

// renderChat puts the active conversation into the viewport, following
// the bottom when it was already there
func (m *Model) renderChat() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(renderConversation(m.active, m.chatWidth(), m.spinner.View()))
	if follow {
		m.viewport.GotoBottom()
	}
}

func renderConversation(s *models.Session, width int, spin string) string {
	if s == nil {
		return metaStyle.Render("No chat selected. Press ctrl+n to start one.")
	}

	wrapWidth := max(20, width-2)
	wrap := lipgloss.NewStyle().Width(wrapWidth)

	var b strings.Builder
	if s.SharedFrom != "" {
		b.WriteString(metaStyle.Render(fmt.Sprintf("Imported from shared chat %s", s.SharedFrom)))
		b.WriteString("\n\n")
	}

	msgs := s.Ordered()
	if len(msgs) == 0 {
		b.WriteString(metaStyle.Render("Say hello. The first message becomes the title."))
		return b.String()
	}

	for _, msg := range msgs {
		style, label := userStyle, "You"
		if msg.Role == models.RoleAssistant {
			style, label = assistantStyle, "Assistant"
		}

		b.WriteString(style.Render("▸ " + label))
		b.WriteString(" ")
		b.WriteString(timestampStyle.Render(humanize.Time(msg.Timestamp)))
		b.WriteString("\n")

		switch {
		case msg.Failed:
			b.WriteString(failedStyle.Width(wrapWidth).Render(msg.Content))
		case !msg.IsSettled() && msg.Content == "":
			b.WriteString(spin + " " + metaStyle.Render("Thinking..."))
		case !msg.IsSettled():
			b.WriteString(wrap.Render(msg.Content) + " " + spin)
		default:
			b.WriteString(wrap.Render(msg.Content))
		}
		b.WriteString("\n")

		if len(msg.Sources) > 0 {
			names := make([]string, 0, len(msg.Sources))
			for _, src := range msg.Sources {
				names = append(names, src.Name)
			}
			b.WriteString(sourceStyle.Width(wrapWidth).Render("Sources: " + strings.Join(names, ", ")))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.New):
		if _, err := m.coord.CreateSession(); err != nil && !repository.IsWarning(err) {
			m.fail(err)
		}
		m.focus = focusInput
		m.input.Focus()
		m.refresh()
		return m, m.statusTimer()

	case key.Matches(msg, m.keys.Delete):
		id := m.targetID()
		if id == "" {
			return m, nil
		}
		m.target = id
		m.mode = confirmDeleteView
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		id := m.targetID()
		if id == "" {
			return m, nil
		}
		m.target = id
		m.mode = renameView
		m.prompt.Prompt = "Rename: "
		m.prompt.SetValue(m.titleOf(id))
		m.prompt.CursorEnd()
		cmd := m.prompt.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Model):
		return m.cycleModel()

	case key.Matches(msg, m.keys.Share):
		if m.active == nil {
			return m, nil
		}
		m.setStatus("Sharing...")
		return m, shareSession(m.coord, m.ctx, m.active.ID)

	case key.Matches(msg, m.keys.Focus):
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.input.Blur()
			m.cursor = max(0, m.indexOf(m.coord.ActiveID()))
			m.ensureCursorVisible()
			return m, nil
		}
		m.focus = focusInput
		cmd := m.input.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.updateSidebar(msg)
	}

	if key.Matches(msg, m.keys.Send) {
		return m.send()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	id := m.coord.ActiveID()
	if id != "" && id == m.streamingID {
		m.setError("Wait for the current response to finish.")
		return m, m.statusTimer()
	}

	m.input.Reset()
	m.streamingID = id
	m.viewport.GotoBottom()
	return m, sendMessage(m.coord, m.ctx, id, text)
}

func (m Model) cycleModel() (tea.Model, tea.Cmd) {
	if m.active == nil {
		return m, nil
	}
	if len(m.modelList) == 0 {
		m.setError("No models available.")
		return m, tea.Batch(loadModels(m.coord, m.ctx), m.statusTimer())
	}

	next := m.modelList[0]
	if i := slices.Index(m.modelList, m.active.Model); i >= 0 {
		next = m.modelList[(i+1)%len(m.modelList)]
	}
	if err := m.coord.SelectModel(m.active.ID, next); err != nil && !repository.IsWarning(err) {
		m.fail(err)
		return m, m.statusTimer()
	}
	m.setStatus("Model: " + next)
	m.refresh()
	return m, m.statusTimer()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if m.mode == filterView {
			m.filterText = ""
			m.refresh()
		}
		m.closePrompt()
		return m, nil

	case msg.Type == tea.KeyEnter:
		if m.mode == renameView {
			if err := m.coord.RenameSession(m.target, m.prompt.Value()); err != nil && !repository.IsWarning(err) {
				m.fail(err)
			}
		}
		m.closePrompt()
		m.refresh()
		return m, m.statusTimer()
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	if m.mode == filterView {
		m.filterText = m.prompt.Value()
		m.cursor = 0
		m.offset = 0
		m.refresh()
	}
	return m, cmd
}

func (m *Model) closePrompt() {
	m.mode = chatView
	m.target = ""
	m.prompt.Blur()
	m.prompt.Reset()
}

func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if err := m.coord.DeleteSession(m.target); err != nil && !repository.IsWarning(err) {
			m.fail(err)
		}
		m.refresh()
	}
	m.mode = chatView
	m.target = ""
	return m, m.statusTimer()
}

// targetID is the session under the sidebar cursor when the sidebar has
// focus, the active session otherwise
func (m Model) targetID() string {
	if m.focus == focusSidebar && m.cursor < len(m.sessions) {
		return m.sessions[m.cursor].ID
	}
	return m.coord.ActiveID()
}

func (m Model) titleOf(id string) string {
	for _, s := range m.sessions {
		if s.ID == id {
			return s.DisplayTitle()
		}
	}
	return ""
}

func (m Model) viewLayout() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewSidebar(),
		separatorStyle.Render(strings.TrimRight(strings.Repeat("│\n", m.bodyHeight()), "\n")),
		m.viewChat(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewInput(), m.viewStatus())
}

func (m Model) viewChat() string {
	w := m.chatWidth()
	header := metaStyle.Render("ragchat")
	if m.active != nil {
		header = titleStyle.Render(clip(m.active.DisplayTitle(), w-20))
		model := m.active.Model
		if model == "" {
			model = "default model"
		}
		header += metaStyle.Render(" · " + model)
	}

	return lipgloss.NewStyle().Width(w).Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(
		header + "\n" + separatorStyle.Render(strings.Repeat("─", w)) + "\n" + m.viewport.View(),
	)
}

func (m Model) viewInput() string {
	switch m.mode {
	case renameView, filterView:
		return m.prompt.View()
	case confirmDeleteView:
		return statusErrorStyle.Render(fmt.Sprintf("Delete %q? (y/n)", m.titleOf(m.target)))
	}
	if m.focus == focusSidebar {
		return helpStyle.Render("tab to type a message")
	}
	return m.input.View()
}

func (m Model) viewStatus() string {
	if m.status != "" {
		if m.statusErr {
			return statusErrorStyle.Render(clip(m.status, m.width))
		}
		return statusStyle.Render(clip(m.status, m.width))
	}
	m.help.Width = m.width
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// clip shortens s to n runes
func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
