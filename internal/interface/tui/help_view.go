package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// any key returns to the chat
	m.mode = chatView
	return m, nil
}

func (m Model) viewHelp() string {
	m.help.Width = m.width
	m.help.ShowAll = true

	intro := `
ragchat - Help
══════════════

Drag a chat in the sidebar with the mouse to reorder it. The first
message you send becomes the chat's title until you rename it.
Filter syntax: free text, model:<name>, since:<date>, before:<date>

`
	return helpStyle.Render(intro) + m.help.View(m.keys) + helpStyle.Render("\n\nPress any key to return")
}
