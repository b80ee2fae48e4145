package ui

import "time"

// Terminal cells are mapped onto pixels so the UI store's breakpoints apply
// to terminal sizes: 96 columns is the mobile limit, 128 the tablet limit.
const (
	CellPixelWidth  = 8
	CellPixelHeight = 16
)

// Pane widths.
const (
	// ListWidth is the sidebar width on tablet and desktop layouts.
	ListWidth = 46

	// PanelWidth is the info/profile/settings column width on desktop.
	PanelWidth = 38

	// ModalWidth is the login/signup modal width.
	ModalWidth = 52
)

// Display limits.
const (
	// NotificationLimit caps the notifications drawn at once.
	NotificationLimit = 3

	// MinZoom and MaxZoom bound keyboard zooming on the map.
	MinZoom = 3
	MaxZoom = 18
)

// Timing constants.
const (
	// DefaultUIInterval is the default snapshot refresh interval.
	DefaultUIInterval = time.Second

	// ActionTimeout bounds network calls triggered from a key press.
	ActionTimeout = 15 * time.Second
)

// distanceSteps is the cycle for the max-distance filter, in kilometres.
var distanceSteps = []float64{1, 3, 5, 10, 20}
