package ui

import (
	"fmt"
	"strings"

	"github.com/dropit-app/dropit/internal/logger"
	"github.com/dropit-app/dropit/internal/state"
)

// renderPanel renders whichever side panel is open, or "" when none is.
func (m Model) renderPanel(width, height int) string {
	var body string
	switch {
	case m.uiSnap.ShowCollectionInfoPanel && m.uiSnap.PanelCollection != nil:
		body = m.renderInfoPanel(*m.uiSnap.PanelCollection, width-2)
	case m.uiSnap.ShowUserProfile:
		body = m.renderProfilePanel(width - 2)
	case m.uiSnap.ShowSettings:
		body = m.renderSettingsPanel(width - 2)
	default:
		return ""
	}
	bg := NewBgStyle(m.theme.SurfaceAlt)
	return m.theme.Styles().FocusedPane.Render(bg.FillBlock(body, width-2, height-2))
}

// field renders one label/value line.
func field(styles Styles, bg BgStyle, label, value string, width int) string {
	const labelWidth = 11
	return bg.Render(padRight(label, labelWidth), styles.MutedText) +
		bg.Render(truncate(value, max(width-labelWidth, 4)), styles.Text)
}

func (m Model) renderInfoPanel(c state.Collection, width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)

	var b strings.Builder
	b.WriteString(bg.Render(truncate(c.Address, width), styles.Text.Bold(true)))
	b.WriteString("\n")
	b.WriteString(m.theme.Styles().CategoryBadge(c.Category).Render(c.Category))
	if c.IsBookmarked {
		b.WriteString(bg.Space())
		b.WriteString(bg.Render("★ bookmarked", styles.WarningText))
	}
	b.WriteString("\n\n")

	b.WriteString(wrap(c.DetailAddress, width, bg, styles.Text))
	b.WriteString("\n\n")

	b.WriteString(field(styles, bg, "Distance", c.Distance, width))
	b.WriteString("\n")
	if p, ok := c.Point(); ok {
		b.WriteString(field(styles, bg, "Position", fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng), width))
		b.WriteString("\n")
	}
	if c.Rating != nil {
		b.WriteString(field(styles, bg, "Rating", fmt.Sprintf("%.1f", *c.Rating), width))
		b.WriteString("\n")
	}
	b.WriteString(field(styles, bg, "Added by", c.CreatedBy, width))
	b.WriteString("\n")
	if !c.CreatedAt.IsZero() {
		b.WriteString(field(styles, bg, "Added", c.CreatedAt.Local().Format("2006-01-02 15:04"), width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(bg.Render("Space bookmark  esc close", styles.FaintText))
	return b.String()
}

func (m Model) renderProfilePanel(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)

	var b strings.Builder
	b.WriteString(bg.Render("Profile", styles.Text.Bold(true)))
	b.WriteString("\n\n")

	if m.session == nil || m.session.User() == nil {
		b.WriteString(bg.Render("Not logged in", styles.MutedText))
		b.WriteString("\n")
		b.WriteString(bg.Render("press a to log in", styles.FaintText))
		return b.String()
	}
	u := m.session.User()
	b.WriteString(field(styles, bg, "Name", u.Name, width))
	b.WriteString("\n")
	b.WriteString(field(styles, bg, "Email", u.Email, width))
	b.WriteString("\n")
	if exp, ok := m.session.ExpiresAt(); ok {
		b.WriteString(field(styles, bg, "Token until", exp.Local().Format("2006-01-02 15:04"), width))
		b.WriteString("\n")
	}
	b.WriteString(field(styles, bg, "Session", m.session.State().String(), width))
	b.WriteString("\n\n")

	stats := m.coll.Statistics()
	b.WriteString(field(styles, bg, "Bookmarks", fmt.Sprintf("%d", stats.Bookmarked), width))
	b.WriteString("\n")
	b.WriteString(field(styles, bg, "Nearby", fmt.Sprintf("%d within %gkm", stats.Nearby, m.coll.NearbyRadiusKm), width))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderSettingsPanel(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)

	var b strings.Builder
	b.WriteString(bg.Render("Settings", styles.Text.Bold(true)))
	b.WriteString("\n\n")
	b.WriteString(field(styles, bg, "Theme", m.theme.Name, width))
	b.WriteString("\n")
	b.WriteString(field(styles, bg, "Legend", onOff(m.prefs.ShowLegend), width))
	b.WriteString("\n")
	b.WriteString(field(styles, bg, "Device", deviceClass(m.uiSnap), width))
	b.WriteString("\n")
	if m.config != nil {
		b.WriteString(field(styles, bg, "API", m.config.APIBase, width))
		b.WriteString("\n")
		b.WriteString(field(styles, bg, "Data", m.config.DataDir, width))
		b.WriteString("\n")
		b.WriteString(field(styles, bg, "Log", logger.FilePath(m.config.DataDir), width))
		b.WriteString("\n")
		refresh := "off"
		if m.config.AutoRefreshMinutes > 0 {
			refresh = fmt.Sprintf("every %dm", m.config.AutoRefreshMinutes)
		}
		b.WriteString(field(styles, bg, "Refresh", refresh, width))
		b.WriteString("\n")
	}
	if m.report != nil {
		b.WriteString("\n")
		b.WriteString(field(styles, bg, "Homepage", okFail(m.report.HomePage), width))
		b.WriteString("\n")
		b.WriteString(field(styles, bg, "Marker API", okFail(m.report.MarkerAPI), width))
		b.WriteString("\n")
		b.WriteString(field(styles, bg, "Auth API", okFail(m.report.AuthAPI), width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(bg.Render("T theme  L legend  esc close", styles.FaintText))
	return b.String()
}

func deviceClass(s state.UISnapshot) string {
	switch {
	case s.IsMobileDevice():
		return "mobile"
	case s.IsTabletDevice():
		return "tablet"
	default:
		return "desktop"
	}
}

func onOff(v bool) string {
	return ternary(v, "on", "off")
}

func okFail(v bool) string {
	return ternary(v, "ok", "failed")
}
