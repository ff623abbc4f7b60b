package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/neilberkman/ragchat/internal/core/reorder"
	"github.com/neilberkman/ragchat/internal/core/repository"
)

func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.ensureCursorVisible()

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
		m.ensureCursorVisible()

	case key.Matches(msg, m.keys.Send):
		if m.cursor < len(m.sessions) {
			if err := m.coord.Select(m.sessions[m.cursor].ID); err != nil {
				m.fail(err)
			}
			m.focus = focusInput
			m.refresh()
			cmd := m.input.Focus()
			return m, tea.Batch(cmd, m.statusTimer())
		}

	case key.Matches(msg, m.keys.MoveUp):
		return m.moveCursor(-1)

	case key.Matches(msg, m.keys.MoveDown):
		return m.moveCursor(1)

	case key.Matches(msg, m.keys.Filter):
		m.mode = filterView
		m.prompt.Prompt = "Filter: "
		m.prompt.SetValue(m.filterText)
		m.prompt.CursorEnd()
		cmd := m.prompt.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Cancel):
		m.filterText = ""
		m.refresh()

	case key.Matches(msg, m.keys.Help):
		m.mode = helpView
	}
	return m, nil
}

// moveCursor moves the session under the cursor by delta positions
func (m Model) moveCursor(delta int) (tea.Model, tea.Cmd) {
	if m.filterText != "" {
		m.setError("Clear the filter to reorder chats.")
		return m, m.statusTimer()
	}

	order := ids(m.sessions)
	to := m.cursor + delta
	if to < 0 || to >= len(order) {
		return m, nil
	}
	next, changed, err := reorder.Move(order, m.cursor, to)
	if err != nil || !changed {
		return m, nil
	}
	if err := m.coord.Reorder(next); err != nil && !repository.IsWarning(err) {
		m.fail(err)
		return m, m.statusTimer()
	}
	m.cursor = to
	m.ensureCursorVisible()
	m.refresh()
	return m, m.statusTimer()
}

// updateMouse handles clicks, wheel scrolling and drag reordering in the
// sidebar. Press starts a drag, motion hovers, release drops; a release
// that leaves the order unchanged is a click.
func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	inSidebar := msg.X < m.sidebarWidth()

	switch {
	case msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown:
		if inSidebar {
			delta := 1
			if msg.Button == tea.MouseButtonWheelUp {
				delta = -1
			}
			m.scrollSidebar(delta)
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if !inSidebar {
			m.focus = focusInput
			cmd := m.input.Focus()
			return m, cmd
		}
		idx, _, ok := m.rowAt(msg.Y)
		if !ok {
			return m, nil
		}
		m.cursor = idx
		if m.filterText != "" {
			// filtered rows are a subset, only clicks make sense
			return m.selectRow(idx)
		}
		drag, err := reorder.Start(ids(m.sessions), idx)
		if err != nil {
			return m, nil
		}
		m.drag = drag
		return m, nil

	case msg.Action == tea.MouseActionMotion && m.drag != nil:
		if k, pos, ok := m.hoverTarget(msg.Y); ok && m.drag.Hover(k, pos) {
			m.refresh()
		}
		return m, nil

	case msg.Action == tea.MouseActionRelease && m.drag != nil:
		drag := m.drag
		m.drag = nil
		if k, pos, ok := m.hoverTarget(msg.Y); ok {
			drag.Drop(k, pos)
		}
		if !drag.Changed() {
			m.refresh()
			return m.selectRow(m.indexOf(drag.Dragged()))
		}
		if _, err := drag.Commit(m.coord); err != nil && !repository.IsWarning(err) {
			m.fail(err)
		}
		m.refresh()
		m.cursor = max(0, m.indexOf(drag.Dragged()))
		return m, m.statusTimer()
	}
	return m, nil
}

func (m Model) selectRow(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(m.sessions) {
		return m, nil
	}
	if err := m.coord.Select(m.sessions[idx].ID); err != nil {
		m.fail(err)
	}
	m.refresh()
	return m, m.statusTimer()
}

func (m Model) indexOf(id string) int {
	for i, s := range m.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m Model) viewSidebar() string {
	w := m.sidebarWidth()
	activeID := m.coord.ActiveID()

	header := fmt.Sprintf("Chats (%d)", len(m.sessions))
	if m.filterText != "" {
		header += " /" + m.filterText
	}
	lines := []string{
		titleStyle.Render(clip(header, w)),
		separatorStyle.Render(strings.Repeat("─", w)),
	}

	if len(m.sessions) == 0 {
		lines = append(lines, metaStyle.Render(" No chats"))
	}

	end := min(len(m.sessions), m.offset+m.visibleRows())
	for i := m.offset; i < end; i++ {
		s := m.sessions[i]
		title := clip(s.DisplayTitle(), w-3)

		var line string
		switch {
		case m.drag != nil && s.ID == m.drag.Dragged():
			line = draggedItemStyle.Render("≡ " + title)
		case m.focus == focusSidebar && i == m.cursor:
			line = selectedItemStyle.Render("› " + title)
		case s.ID == activeID:
			line = activeItemStyle.Render(title)
		default:
			line = itemStyle.Render(title)
		}

		meta := fmt.Sprintf("%d msgs · %s", len(s.Messages), humanize.Time(s.UpdatedAt))
		if s.ID == m.streamingID {
			meta = m.spinner.View() + " " + meta
		}
		lines = append(lines, line, itemStyle.Render(metaStyle.Render(clip(meta, w-3))))
	}

	return lipgloss.NewStyle().Width(w).MaxWidth(w).Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).
		Render(strings.Join(lines, "\n"))
}
