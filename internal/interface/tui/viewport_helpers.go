package tui

import "github.com/neilberkman/ragchat/internal/core/reorder"

const (
	sidebarTop = 2 // header + separator
	rowHeight  = 2 // title + meta line
)

func (m Model) visibleRows() int {
	return max(1, (m.bodyHeight()-sidebarTop)/rowHeight)
}

// rowAt maps a screen row inside the sidebar to a session index and the
// half of the row the pointer is in. Rows are two lines tall, so the first
// line is above the midpoint and the second below it.
func (m Model) rowAt(y int) (int, reorder.Placement, bool) {
	if y < sidebarTop || y >= m.bodyHeight() {
		return 0, reorder.Above, false
	}
	rel := y - sidebarTop
	idx := rel/rowHeight + m.offset
	if idx >= len(m.sessions) {
		return 0, reorder.Above, false
	}
	pos := reorder.Above
	if rel%rowHeight >= rowHeight/2 {
		pos = reorder.Below
	}
	return idx, pos, true
}

// hoverTarget is rowAt, except that the empty space under the last row
// counts as below the last row
func (m Model) hoverTarget(y int) (int, reorder.Placement, bool) {
	if k, pos, ok := m.rowAt(y); ok {
		return k, pos, true
	}
	if y >= sidebarTop && len(m.sessions) > 0 {
		return len(m.sessions) - 1, reorder.Below, true
	}
	return 0, reorder.Above, false
}

// ensureCursorVisible scrolls the sidebar so the cursor row is shown
func (m *Model) ensureCursorVisible() {
	visible := m.visibleRows()
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	m.offset = max(0, min(m.offset, len(m.sessions)-visible))
}

// scrollSidebar moves the sidebar window by delta rows
func (m *Model) scrollSidebar(delta int) {
	m.offset = max(0, min(m.offset+delta, len(m.sessions)-m.visibleRows()))
}
