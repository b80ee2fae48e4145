// Package ui provides the terminal user interface for DropIt.
//
// # Architecture Overview
//
// The UI package implements a TUI (Terminal User Interface) using Bubble Tea.
// The model never owns domain state: it reads value snapshots from the
// collection, map and UI stores on every tick and calls store operations in
// response to keys. Stores stay the single source of truth, so the CLI and
// background refresh can change them while the program runs.
//
// # Package Structure
//
//   - app.go: Model, Update/View dispatch, messages and commands, Run
//   - list.go: Collection list pane, filters and search
//   - map_pane.go: Map pane keys and grid rendering
//   - mapview.go: MapView, the terminal map widget installed on the map store
//   - panels.go: Collection info, profile and settings panels
//   - auth_modal.go: Login and signup modal
//   - header.go, render.go: Status bar, command bar, layout and notifications
//   - theme.go, keys.go, layout.go, style_helpers.go: Presentation helpers
//
// # Layout
//
// The terminal size is reported to the UI store in pixels, one cell being
// CellPixelWidth by CellPixelHeight, so the store's device breakpoints apply
// unchanged:
//
//   - Mobile: a single pane; Tab switches between list and map, and an open
//     panel replaces both
//   - Tablet: list beside the map; an open panel replaces the map
//   - Desktop: list, map and a panel column
//
// # Map
//
// MapView implements the map store's widget and marker handle contracts. The
// store creates one pin per marker; the view projects visible pins onto the
// character grid around the current center. Selecting a pin goes through
// Click so the store's click handler selects the collection and opens its
// info panel, exactly as it would for a pointer click.
//
// The map reports ready once the first window size arrives; the initial load
// is issued then.
//
// # Usage Example
//
//	view := ui.NewMapView()
//	maps.SetMapInstance(view)
//	err := ui.Run(ui.Options{
//		Context:     ctx,
//		Collections: collections,
//		Map:         maps,
//		UI:          uiStore,
//		View:        view,
//		Session:     session,
//	})
package ui
