package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	// Header uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	content := m.buildStatusContent(styles, bg)

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(content)
}

// buildStatusContent builds the status bar content string.
func (m Model) buildStatusContent(styles Styles, bg BgStyle) string {
	compact := m.uiSnap.IsMobileDevice()
	stats := m.coll.Statistics()

	var parts []string

	// Logo
	parts = append(parts, bg.Render("dropit", styles.Logo))

	// Backend status indicator
	switch {
	case m.report == nil:
		parts = append(parts, bg.Render("● ...", styles.FaintText))
	case m.report.OK():
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	default:
		parts = append(parts, bg.Render("● DEGRADED", styles.DangerText))
	}

	// Account
	who := "anonymous"
	whoStyle := styles.FaintText
	if m.session != nil && m.session.IsValid() {
		if u := m.session.User(); u != nil {
			who = u.Name
			whoStyle = styles.Text
		}
	}
	parts = append(parts, bg.Render(truncate(who, 18), whoStyle))

	// Counts
	if compact {
		parts = append(parts,
			bg.Render(fmt.Sprintf("%d", stats.Total), styles.Text)+bg.Sep("/")+
				bg.Render(fmt.Sprintf("%d", stats.Nearby), styles.AccentText)+bg.Sep("/")+
				bg.Render(fmt.Sprintf("%d★", stats.Bookmarked), styles.WarningText))
	} else {
		parts = append(parts,
			bg.Render("Points:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", stats.Total), styles.Text),
			bg.Render("Nearby:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", stats.Nearby), styles.AccentText),
			bg.Render("Saved:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", stats.Bookmarked), styles.WarningText),
		)
	}

	// Timestamp with relative time
	if ts := formatTimestamp(stats.LastRefresh); ts != "" && !compact {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if m.uiSnap.IsAnyLoading() {
		msg := m.uiSnap.LoadingMessage
		if m.uiSnap.Searching {
			msg = "Searching..."
		}
		parts = append(parts, bg.Render(msg, styles.WarningText.Bold(true)))
	}

	if n := m.uiSnap.UnreadCount(); n > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("✉ %d", n), styles.InfoText))
	}

	return bg.Join(parts, "  ")
}

// formatTimestamp formats the last refresh time with relative indicator.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	timeSince := time.Since(t)
	timeStr := t.Local().Format("15:04:05")

	if timeSince < time.Minute {
		timeStr += " (now)"
	} else if timeSince < time.Hour {
		timeStr += fmt.Sprintf(" (%dm ago)", int(timeSince.Minutes()))
	} else if timeSince < 24*time.Hour {
		timeStr += fmt.Sprintf(" (%dh ago)", int(timeSince.Hours()))
	}

	return timeStr
}

// renderCommandBar renders the command hints bar.
func (m Model) renderCommandBar() string {
	// Command bar uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch {
	case m.searchActive:
		commands = []cmd{
			{"Enter", "Search"},
			{"Esc", "Cancel"},
		}
	case m.focus == FocusMap:
		commands = []cmd{
			{"hjkl", "Pan"},
			{"+/-", "Zoom"},
			{"n/N", "Marker"},
			{"Enter", "Info"},
			{"P", "Here"},
			{"Tab", "List"},
			{"?", "More"},
		}
	default:
		commands = []cmd{
			{"m", menuTitle(m.uiSnap.ActiveMenu)},
			{"c", m.coll.Filters.Category},
			{"o", m.coll.Filters.SortBy},
			{"/", "Search"},
			{"Space", "Bookmark"},
			{"Tab", "Map"},
			{"a", "Account"},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	// Add theme indicator
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}
