package tui

import "github.com/charmbracelet/lipgloss"

// Global styles used across views
var (
	// Sidebar styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(lipgloss.Color("170")).
				Bold(true)

	activeItemStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(lipgloss.Color("120")). // Light green - contrasts better with purple selection
			Bold(true)

	draggedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("226")).
				Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246")) // Lighter gray that works better in dark terminals

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	// Chat styles
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("cyan")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	// Status line styles
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)
