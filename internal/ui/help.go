package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// Titles for the FullHelp columns, in order.
var helpTitles = []string{"Navigation", "List", "Filters", "Map", "Panels", "General"}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	var sections []helpSection
	for i, group := range m.keys.FullHelp() {
		section := helpSection{title: helpTitles[min(i, len(helpTitles)-1)]}
		for _, b := range group {
			section.items = append(section.items, bindingHelp(b))
		}
		sections = append(sections, section)
	}

	var b strings.Builder

	// Title
	title := styles.Text.Bold(true).Render("Keyboard Shortcuts")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)

	// Two columns when there is room.
	var columns []string
	var col strings.Builder
	lines := 0
	perColumn := max(m.height-8, 10)
	for _, section := range sections {
		height := len(section.items) + 2
		if lines > 0 && lines+height > perColumn {
			columns = append(columns, col.String())
			col.Reset()
			lines = 0
		}
		col.WriteString(styles.AccentText.Bold(true).Render(section.title))
		col.WriteString("\n")
		for _, item := range section.items {
			col.WriteString(keyStyle.Render(item.key))
			col.WriteString(styles.Text.Render(item.desc))
			col.WriteString("\n")
		}
		col.WriteString("\n")
		lines += height
	}
	columns = append(columns, col.String())

	colStyle := lipgloss.NewStyle().Width(36)
	rendered := make([]string, len(columns))
	for i, c := range columns {
		rendered[i] = colStyle.Render(strings.TrimRight(c, "\n"))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Press any key to close"))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

func bindingHelp(b key.Binding) helpItem {
	h := b.Help()
	return helpItem{key: h.Key, desc: h.Desc}
}

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}
