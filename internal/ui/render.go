package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dropit-app/dropit/internal/state"
)

// renderMain renders the main view with header and content.
func (m Model) renderMain() string {
	var b strings.Builder

	// Header line 1: logo + status
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Header line 2: command bar
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	notes := m.renderNotifications()
	contentHeight := m.height - 2
	if notes != "" {
		contentHeight -= lipgloss.Height(notes)
	}

	// Main content
	b.WriteString(m.renderContent(max(contentHeight, 4)))
	if notes != "" {
		b.WriteString("\n")
		b.WriteString(notes)
	}

	return b.String()
}

// renderContent lays the panes out for the current device class. Mobile shows
// a single pane, tablet adds the map beside the list, and desktop adds a
// panel column.
func (m Model) renderContent(height int) string {
	width := m.width
	panelOpen := m.uiSnap.HasAnyPanelOpen()

	if m.uiSnap.IsMobileDevice() {
		switch {
		case panelOpen:
			return m.renderPanel(width, height)
		case m.focus == FocusMap:
			return m.renderMap(width, height)
		default:
			return m.renderList(width, height)
		}
	}

	var cols []string
	remaining := width
	if m.uiSnap.ShowSidebar {
		listWidth := min(ListWidth, width/2)
		cols = append(cols, m.renderList(listWidth, height))
		remaining -= listWidth
	}

	if panelOpen {
		if m.uiSnap.IsTabletDevice() {
			// The panel takes the map's place.
			cols = append(cols, m.renderPanel(remaining, height))
			return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
		}
		panelWidth := min(PanelWidth, remaining/2)
		cols = append(cols, m.renderMap(remaining-panelWidth, height), m.renderPanel(panelWidth, height))
		return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
	}

	cols = append(cols, m.renderMap(remaining, height))
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

// renderNotifications renders the newest notifications, one per line.
func (m Model) renderNotifications() string {
	notes := m.uiSnap.Notifications
	if len(notes) == 0 {
		return ""
	}
	if len(notes) > NotificationLimit {
		notes = notes[len(notes)-NotificationLimit:]
	}

	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		icon := "•"
		switch n.Type {
		case state.NotifySuccess:
			icon = "✓"
		case state.NotifyWarning:
			icon = "!"
		case state.NotifyError:
			icon = "✗"
		}
		style := styles.NotificationStyle(n.Type)
		if n.Read {
			style = styles.FaintText
		}
		text := bg.Render(icon, style) + bg.Space() +
			bg.Render(truncate(n.Message, max(m.width-14, 10)), style) + bg.Space() +
			bg.Render(n.Timestamp.Local().Format("15:04"), styles.FaintText)
		lines = append(lines, bg.FillLine(text, m.width))
	}
	return strings.Join(lines, "\n")
}
