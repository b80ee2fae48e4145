package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding
	Refresh    key.Binding
	Account    key.Binding
	Settings   key.Binding
	Sidebar    key.Binding
	Legend     key.Binding
	Dismiss    key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Top    key.Binding
	Bottom key.Binding

	// List actions
	Open           key.Binding
	Bookmark       key.Binding
	CycleMenu      key.Binding
	CycleCategory  key.Binding
	CycleSort      key.Binding
	CycleDistance  key.Binding
	BookmarkedOnly key.Binding
	Search         key.Binding
	ResetFilters   key.Binding

	// Map actions
	ZoomIn      key.Binding
	ZoomOut     key.Binding
	NextMarker  key.Binding
	PrevMarker  key.Binding
	ResetView   key.Binding
	Locate      key.Binding
	PinLocation key.Binding

	// Search/input
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Focus list/map"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close panels"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		Account: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Log in / profile"),
		),
		Settings: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Settings"),
		),
		Sidebar: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Toggle sidebar"),
		),
		Legend: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Toggle legend"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Clear notifications"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/left", "Pan west"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/right", "Pan east"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open info"),
		),
		Bookmark: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle bookmark"),
		),
		CycleMenu: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Cycle list"),
		),
		CycleCategory: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Cycle category"),
		),
		CycleSort: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Cycle sort"),
		),
		CycleDistance: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Cycle max distance"),
		),
		BookmarkedOnly: key.NewBinding(
			key.WithKeys("B"),
			key.WithHelp("B", "Bookmarked only"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search"),
		),
		ResetFilters: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Reset filters"),
		),

		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "Zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Zoom out"),
		),
		NextMarker: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Next marker"),
		),
		PrevMarker: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "Previous marker"),
		),
		ResetView: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "Reset view"),
		),
		Locate: key.NewBinding(
			key.WithKeys("."),
			key.WithHelp(".", "Go to my location"),
		),
		PinLocation: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "Set my location here"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Up, k.Down, k.Top, k.Bottom, k.Escape},
		{k.Open, k.Bookmark, k.CycleMenu, k.Search},
		{k.CycleCategory, k.CycleSort, k.CycleDistance, k.BookmarkedOnly, k.ResetFilters},
		{k.Left, k.Right, k.ZoomIn, k.ZoomOut, k.NextMarker, k.PrevMarker, k.ResetView, k.Locate, k.PinLocation},
		{k.Refresh, k.Account, k.Settings, k.Sidebar, k.Legend, k.Dismiss},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
