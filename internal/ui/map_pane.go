package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/prefs"
	"github.com/dropit-app/dropit/internal/state"
)

// Pan steps in cells. Rows are twice as tall as columns are wide.
const (
	panCols = 6
	panRows = 3
)

// handleMapKey processes keyboard input for the map pane.
func (m Model) handleMapKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	zoom := m.mapSnap.Zoom

	switch {
	case key.Matches(msg, m.keys.Up):
		m.panTo(m.view.Offset(0, -panRows))
	case key.Matches(msg, m.keys.Down):
		m.panTo(m.view.Offset(0, panRows))
	case key.Matches(msg, m.keys.Left):
		m.panTo(m.view.Offset(-panCols, 0))
	case key.Matches(msg, m.keys.Right):
		m.panTo(m.view.Offset(panCols, 0))

	case key.Matches(msg, m.keys.ZoomIn):
		m.maps.SetZoom(min(zoom+1, MaxZoom))
	case key.Matches(msg, m.keys.ZoomOut):
		m.maps.SetZoom(max(zoom-1, MinZoom))

	case key.Matches(msg, m.keys.NextMarker), key.Matches(msg, m.keys.PrevMarker):
		step := 1
		if key.Matches(msg, m.keys.PrevMarker) {
			step = -1
		}
		if p, ok := m.view.MoveCursor(step); ok {
			m.panTo(p.At)
		}

	case key.Matches(msg, m.keys.Open):
		if id, ok := m.view.Cursor(); ok {
			m.view.Click(id)
		}

	case key.Matches(msg, m.keys.Bookmark):
		if id, ok := m.view.Cursor(); ok {
			m.toggleBookmark(id)
		}

	case key.Matches(msg, m.keys.ResetView):
		m.maps.ResetView()

	case key.Matches(msg, m.keys.Locate):
		m.locate()

	case key.Matches(msg, m.keys.PinLocation):
		m.pinLocation()

	case key.Matches(msg, m.keys.CycleCategory):
		next := cycle(state.Categories, m.coll.Filters.Category)
		m.setFilter(state.FilterCategory, next)
		m.maps.FilterByCategory(next)

	default:
		return m, nil
	}

	m.pull()
	return m, nil
}

// panTo recenters the map at the current zoom.
func (m *Model) panTo(p geo.Point) {
	if err := m.maps.MoveTo(p.Lat, p.Lng, m.mapSnap.Zoom); err != nil {
		m.logger.Debug("pan rejected", "error", err)
	}
}

// locate centers the map on the user location.
func (m *Model) locate() {
	loc := m.coll.UserLocation
	if loc == nil {
		m.uiStore.Notify(state.NotifyWarning, "Location unknown: press P on the map to set it")
		return
	}
	if err := m.maps.MoveTo(loc.Lat, loc.Lng, state.FocusZoom); err != nil {
		m.logger.Debug("locate failed", "error", err)
	}
}

// pinLocation makes the map center the user location.
func (m *Model) pinLocation() {
	center := m.mapSnap.Center
	if err := m.collections.SetUserLocation(center.Lat, center.Lng); err != nil {
		m.uiStore.Notify(state.NotifyError, err.Error())
		return
	}
	if err := m.maps.SetCurrentLocation(center.Lat, center.Lng); err != nil {
		m.logger.Debug("set current location failed", "error", err)
	}
	m.uiStore.Notify(state.NotifySuccess, fmt.Sprintf("Location set to %.4f, %.4f", center.Lat, center.Lng))
}

// renderMap renders the map pane, including borders, at width×height.
func (m Model) renderMap(width, height int) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.SurfaceAlt)
	alt := styles.WithBackground(m.theme.SurfaceAlt)
	inner := max(width-2, 4)
	rows := max(height-2, 2)

	footer := m.renderMapFooter(alt, bg)
	legend := ""
	if m.prefs.ShowLegend {
		legend = m.renderLegend(alt, bg)
	}
	gridRows := rows - 1
	if legend != "" {
		gridRows--
	}
	gridRows = max(gridRows, 1)

	grid := make([][]string, gridRows)
	for r := range grid {
		grid[r] = make([]string, inner)
		for c := range grid[r] {
			grid[r][c] = bg.Space()
		}
	}

	// Center cross, then the user location, then pins on top.
	if gridRows > 0 && inner > 0 {
		grid[gridRows/2][inner/2] = bg.Render("+", alt.FaintText)
	}
	center, zoom := m.view.Center()
	if loc := m.coll.UserLocation; loc != nil {
		if col, row, ok := project(*loc, center, zoom, inner, gridRows); ok {
			grid[row][col] = bg.Render("◉", alt.InfoText)
		}
	}

	cursor, hasCursor := m.view.Cursor()
	glyph := m.prefs.MapGlyph
	if glyph == "" {
		glyph = prefs.Defaults().MapGlyph
	}
	for _, p := range m.view.Layout(inner, gridRows) {
		style := alt.CategoryText(state.Project(p.Marker, nil, false).Category)
		g := glyph
		switch {
		case m.mapSnap.HasSelection && p.Marker.ID == m.mapSnap.SelectedID:
			g = "◆"
		case slices.Contains(m.coll.Bookmarks, p.Marker.ID):
			g = "★"
		}
		if hasCursor && p.Marker.ID == cursor && m.focus == FocusMap {
			style = styles.Selected
		}
		grid[p.Row][p.Col] = bg.Render(g, style)
	}

	lines := make([]string, 0, rows)
	for _, row := range grid {
		lines = append(lines, strings.Join(row, ""))
	}
	if legend != "" {
		lines = append(lines, bg.FillLine(legend, inner))
	}
	lines = append(lines, bg.FillLine(footer, inner))

	style := styles.Pane
	if m.focus == FocusMap {
		style = styles.FocusedPane
	}
	return style.Render(bg.FillBlock(strings.Join(lines, "\n"), inner, rows))
}

func (m Model) renderMapFooter(styles Styles, bg BgStyle) string {
	snap := m.mapSnap
	parts := []string{
		bg.Render(fmt.Sprintf("%.4f, %.4f", snap.Center.Lat, snap.Center.Lng), styles.MutedText),
		bg.Render(fmt.Sprintf("z%d", snap.Zoom), styles.AccentText),
		bg.Render(fmt.Sprintf("%d/%d markers", len(snap.VisiblePlacements()), snap.Count()), styles.MutedText),
	}
	switch {
	case !snap.Ready:
		parts = append(parts, bg.Render("map not ready", styles.WarningText))
	case snap.Loading:
		parts = append(parts, bg.Render("loading...", styles.WarningText))
	case snap.Err != nil:
		parts = append(parts, bg.Render("load failed", styles.DangerText))
	}
	if id, ok := m.view.Cursor(); ok {
		if c, found := m.findCollection(id); found {
			parts = append(parts, bg.Render("▸ "+truncate(c.Address, 24), styles.Text))
		}
	}
	return bg.Join(parts, "  ")
}

func (m Model) renderLegend(styles Styles, bg BgStyle) string {
	counts := m.coll.CategoryStats()
	parts := make([]string, 0, len(state.Categories))
	for _, cat := range state.Categories[1:] {
		parts = append(parts,
			bg.Render("●", styles.CategoryText(cat))+bg.Space()+
				bg.Render(fmt.Sprintf("%s %d", cat, counts[cat]), styles.MutedText))
	}
	return bg.Join(parts, "  ")
}

// findCollection looks id up in the last collection snapshot.
func (m Model) findCollection(id int64) (state.Collection, bool) {
	for _, c := range m.coll.Collections {
		if c.ID == id {
			return c, true
		}
	}
	return state.Collection{}, false
}
