package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dropit-app/dropit/internal/state"
)

var sortOrder = []string{state.SortDistance, state.SortRating, state.SortRecent}

// listItems returns the rows of the active menu.
func (m Model) listItems() []state.Collection {
	switch m.uiSnap.ActiveMenu {
	case "nearby":
		return m.coll.NearbyCollections()
	case "recommended":
		return m.coll.RecommendedCollections()
	case "bookmarks":
		return m.coll.BookmarkedCollections()
	default:
		return m.coll.FilteredCollections()
	}
}

func (m Model) selectedItem() (state.Collection, bool) {
	items := m.listItems()
	if m.selectedRow < 0 || m.selectedRow >= len(items) {
		return state.Collection{}, false
	}
	return items[m.selectedRow], true
}

// handleListKey processes keyboard input for the list pane.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	itemCount := len(m.listItems())

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < itemCount-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = max(itemCount-1, 0)

	case key.Matches(msg, m.keys.Open):
		if c, ok := m.selectedItem(); ok {
			m.openCollection(c)
		}

	case key.Matches(msg, m.keys.Bookmark):
		if c, ok := m.selectedItem(); ok {
			m.toggleBookmark(c.ID)
		}

	case key.Matches(msg, m.keys.CycleMenu):
		m.uiStore.SetActiveMenu(cycle(menuOrder, m.uiSnap.ActiveMenu))
		m.selectedRow = 0

	case key.Matches(msg, m.keys.CycleCategory):
		m.setFilter(state.FilterCategory, cycle(state.Categories, m.coll.Filters.Category))

	case key.Matches(msg, m.keys.CycleSort):
		m.setFilter(state.FilterSortBy, cycle(sortOrder, m.coll.Filters.SortBy))

	case key.Matches(msg, m.keys.CycleDistance):
		m.setFilter(state.FilterMaxDistance, nextDistance(m.coll.Filters.MaxDistance))

	case key.Matches(msg, m.keys.BookmarkedOnly):
		m.setFilter(state.FilterShowBookmarkedOnly, !m.coll.Filters.ShowBookmarkedOnly)

	case key.Matches(msg, m.keys.ResetFilters):
		m.collections.ResetFilters()
		m.uiStore.ClearSearchResults()
		m.searchInput.SetValue("")
		m.selectedRow = 0

	case key.Matches(msg, m.keys.Search):
		m.searchActive = true
		m.searchInput.SetValue(m.coll.Filters.SearchQuery)
		m.searchInput.CursorEnd()
		return m, m.searchInput.Focus()

	default:
		return m, nil
	}

	m.pull()
	return m, nil
}

// openCollection centers the map on c and opens its info panel. Placed
// markers go through the map click path so marker selection follows.
func (m *Model) openCollection(c state.Collection) {
	if p, ok := c.Point(); ok {
		if err := m.maps.MoveTo(p.Lat, p.Lng, state.FocusZoom); err != nil {
			m.logger.Debug("move to collection failed", "id", c.ID, "error", err)
		}
		m.view.SetCursor(c.ID)
	}
	if !m.maps.ShowMarkerInfo(c.ID) {
		m.collections.Select(c)
		m.uiStore.OpenCollectionInfoPanel(c)
	}
}

func (m *Model) toggleBookmark(id int64) {
	on, err := m.collections.ToggleBookmark(id)
	if err != nil {
		m.uiStore.Notify(state.NotifyError, "Could not save bookmark")
		m.logger.Warn("toggle bookmark failed", "id", id, "error", err)
		return
	}
	if on {
		m.uiStore.Notify(state.NotifySuccess, "Bookmarked")
	} else {
		m.uiStore.Notify(state.NotifyInfo, "Bookmark removed")
	}
	// Refresh the open panel's copy.
	if panel := m.uiSnap.PanelCollection; m.uiSnap.ShowCollectionInfoPanel && panel != nil && panel.ID == id {
		m.uiStore.OpenCollectionInfoPanel(m.collections.Project(panel.Marker))
	}
}

func (m *Model) setFilter(name string, value any) {
	if err := m.collections.SetFilter(name, value); err != nil {
		m.uiStore.Notify(state.NotifyWarning, err.Error())
		return
	}
	m.selectedRow = 0
}

func cycle(values []string, current string) string {
	i := slices.Index(values, current)
	return values[(i+1)%len(values)]
}

func nextDistance(current float64) float64 {
	for _, d := range distanceSteps {
		if d > current {
			return d
		}
	}
	return distanceSteps[0]
}

// --- Search ---

func (m *Model) initSearchInput() {
	in := textinput.New()
	in.Placeholder = "title, address or category"
	in.Prompt = "/"
	in.CharLimit = 80
	in.Width = ListWidth - 6
	m.searchInput = in
}

// handleSearchInput handles keyboard input while the search field is focused.
func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.applySearch(m.searchInput.Value())
		m.searchActive = false
		m.searchInput.Blur()
		m.pull()
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.searchActive = false
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// applySearch filters the list and records the matches in the UI store.
func (m *Model) applySearch(query string) {
	query = strings.TrimSpace(query)
	m.uiStore.StartSearching()
	defer m.uiStore.StopSearching()

	m.collections.SearchCollections(query)
	m.selectedRow = 0
	if query == "" {
		m.uiStore.ClearSearchResults()
		return
	}
	results := m.collections.Snapshot().FilteredCollections()
	m.uiStore.SetSearchResults(results)
	if len(results) == 0 {
		m.uiStore.Notify(state.NotifyInfo, fmt.Sprintf("No collection points match %q", query))
	}
}

// --- Rendering ---

func menuTitle(menu string) string {
	switch menu {
	case "nearby":
		return "Nearby"
	case "recommended":
		return "Recommended"
	case "bookmarks":
		return "Bookmarks"
	default:
		return "Collection points"
	}
}

// renderList renders the list pane, including borders, at width×height.
func (m Model) renderList(width, height int) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	surface := styles.WithBackground(m.theme.Surface)
	inner := max(width-2, 10)

	var lines []string
	items := m.listItems()
	title := fmt.Sprintf("%s (%d)", menuTitle(m.uiSnap.ActiveMenu), len(items))
	lines = append(lines, bg.Render(title, surface.Text.Bold(true)))
	lines = append(lines, m.renderFilterLine(surface, bg, inner))
	if m.searchActive {
		lines = append(lines, m.searchInput.View())
	} else {
		lines = append(lines, bg.Render(strings.Repeat("─", inner), surface.FaintText))
	}

	rows := height - 2 - len(lines)
	switch {
	case m.coll.ShouldShowErrorState():
		lines = append(lines,
			bg.Render("Could not load collection points", surface.DangerText),
			bg.Render(truncate(errorText(m.coll.Err), inner), surface.MutedText),
			bg.Render("press r to retry", surface.FaintText))
	case m.coll.Loading && len(m.coll.Collections) == 0:
		lines = append(lines, bg.Render("Loading collection points...", surface.WarningText))
	case len(items) == 0:
		lines = append(lines, bg.Render(m.emptyText(), surface.MutedText))
	default:
		lines = append(lines, m.renderRows(items, inner, rows, surface, bg)...)
	}

	style := styles.Pane
	if m.focus == FocusList {
		style = styles.FocusedPane
	}
	return style.Render(bg.FillBlock(strings.Join(lines, "\n"), inner, height-2))
}

func (m Model) emptyText() string {
	switch {
	case m.uiSnap.ActiveMenu == "bookmarks":
		return "No bookmarks yet (Space to add)"
	case m.coll.ShouldShowEmptyState():
		return "No collection points yet"
	default:
		return "Nothing matches the current filters"
	}
}

func (m Model) renderFilterLine(styles Styles, bg BgStyle, width int) string {
	f := m.coll.Filters
	parts := []string{
		bg.Render(f.Category, styles.AccentText),
		bg.Render("by "+f.SortBy, styles.MutedText),
		bg.Render(fmt.Sprintf("≤%gkm", f.MaxDistance), styles.MutedText),
	}
	if f.ShowBookmarkedOnly {
		parts = append(parts, bg.Render("★ only", styles.WarningText))
	}
	if f.SearchQuery != "" {
		parts = append(parts, bg.Render("/"+truncate(f.SearchQuery, 14), styles.InfoText))
	}
	return bg.Join(parts, "  ")
}

func (m Model) renderRows(items []state.Collection, width, rows int, styles Styles, bg BgStyle) []string {
	if rows <= 0 {
		return nil
	}
	// Keep the selection on screen.
	start := 0
	if m.selectedRow >= rows {
		start = m.selectedRow - rows + 1
	}
	end := min(start+rows, len(items))

	selectedID := int64(-1)
	if m.coll.Selected != nil {
		selectedID = m.coll.Selected.ID
	}

	out := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		c := items[i]
		mark := " "
		if c.ID == selectedID {
			mark = "▸"
		}
		if c.IsBookmarked {
			mark += "★"
		} else {
			mark += " "
		}
		dist := padLeft(c.Distance, 9)
		titleWidth := max(width-len([]rune(mark))-10-9, 4)
		title := padRight(truncate(c.Address, titleWidth), titleWidth)

		if i == m.selectedRow {
			text := mark + title + " " + padRight(c.Category, 8) + " " + dist
			out = append(out, styles.Selected.Width(width).Render(text))
			continue
		}
		line := bg.Render(mark, styles.WarningText) +
			bg.Render(title, styles.Text) + bg.Space() +
			bg.Render(padRight(c.Category, 8), styles.CategoryText(c.Category)) + bg.Space() +
			bg.Render(dist, styles.MutedText)
		out = append(out, line)
	}
	return out
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
