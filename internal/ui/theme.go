package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dropit-app/dropit/internal/state"
)

// Theme defines colors and styles for the UI.
type Theme struct {
	Name string

	// Base colors
	Background string // Outermost background
	Surface    string // Header, command bar, list
	SurfaceAlt string // Map canvas and side panels
	FocusBg    string // Focused pane

	// List selection
	SelectionBg   string
	SelectionText string

	// Borders
	Border      string
	BorderMuted string
	BorderFocus string

	// Text colors
	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// CategoryColors colors map pins and category badges.
	CategoryColors map[string]string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Background: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Background)),

		Surface: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)),

		SurfaceAlt: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SurfaceAlt)).
			Foreground(lipgloss.Color(t.Text)),

		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		FaintText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Faint)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		InfoText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Info)),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.SelectionText)),

		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)),

		FocusedPane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.BorderFocus)),

		categoryColors: t.CategoryColors,
		background:     t.Background,
		muted:          t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Background lipgloss.Style
	Surface    lipgloss.Style
	SurfaceAlt lipgloss.Style

	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header      lipgloss.Style
	Logo        lipgloss.Style
	Selected    lipgloss.Style
	Pane        lipgloss.Style
	FocusedPane lipgloss.Style

	categoryColors map[string]string
	background     string
	muted          string
}

func (s Styles) categoryColor(category string) string {
	if c := s.categoryColors[category]; c != "" {
		return c
	}
	if c := s.categoryColors[state.CategoryEtc]; c != "" {
		return c
	}
	return s.muted
}

// CategoryBadge returns a filled badge style for a category.
func (s Styles) CategoryBadge(category string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(s.categoryColor(category))).
		Padding(0, 1)
}

// CategoryText returns a foreground-only style for a category, used for pins.
func (s Styles) CategoryText(category string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.categoryColor(category))).
		Bold(true)
}

// NotificationStyle returns the text style for a notification type.
func (s Styles) NotificationStyle(kind state.NotificationType) lipgloss.Style {
	switch kind {
	case state.NotifySuccess:
		return s.SuccessText
	case state.NotifyWarning:
		return s.WarningText
	case state.NotifyError:
		return s.DangerText
	default:
		return s.InfoText
	}
}

// WithBackground returns a copy of Styles with all text styles having the specified background.
// This ensures styled text has explicit backgrounds instead of transparent/inherit.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)

	out := s
	out.Background = s.Background.Background(bg)
	out.Surface = s.Surface.Background(bg)
	out.SurfaceAlt = s.SurfaceAlt.Background(bg)
	out.Text = s.Text.Background(bg)
	out.MutedText = s.MutedText.Background(bg)
	out.FaintText = s.FaintText.Background(bg)
	out.AccentText = s.AccentText.Background(bg)
	out.SuccessText = s.SuccessText.Background(bg)
	out.WarningText = s.WarningText.Background(bg)
	out.DangerText = s.DangerText.Background(bg)
	out.InfoText = s.InfoText.Background(bg)
	out.Header = s.Header.Background(bg)
	out.Logo = s.Logo.Background(bg)
	return out
}

// Theme definitions

var themes = map[string]Theme{
	"Recycle":  recycleTheme(),
	"Nightfox": nightfoxTheme(),
	"Kanagawa": kanagawaTheme(),
}

var themeOrder = []string{"Recycle", "Nightfox", "Kanagawa"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return recycleTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func recycleTheme() Theme {
	// Tailwind CSS stone/emerald palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Recycle",

		Background: "#0c0a09", // stone-950
		Surface:    "#1c1917", // stone-900
		SurfaceAlt: "#292524", // stone-800
		FocusBg:    "#322e2b",

		SelectionBg:   "#047857", // emerald-700
		SelectionText: "#ecfdf5", // emerald-50

		Border:      "#44403c", // stone-700
		BorderMuted: "#292524", // stone-800
		BorderFocus: "#34d399", // emerald-400

		Text:    "#f5f5f4", // stone-100
		Muted:   "#a8a29e", // stone-400
		Faint:   "#78716c", // stone-500
		Accent:  "#34d399", // emerald-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#38bdf8", // sky-400

		CategoryColors: map[string]string{
			state.CategoryClothes: "#34d399", // emerald-400
			state.CategoryShoes:   "#38bdf8", // sky-400
			state.CategoryBags:    "#f59e0b", // amber-500
			state.CategoryEtc:     "#a8a29e", // stone-400
		},
	}
}

func nightfoxTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name: "Nightfox",

		Background: "#131a24", // bg0
		Surface:    "#192330", // bg1
		SurfaceAlt: "#212e3f", // bg2
		FocusBg:    "#29394f", // bg3

		SelectionBg:   "#2b3b51", // sel0
		SelectionText: "#cdcecf", // fg1

		Border:      "#39506d", // bg4
		BorderMuted: "#212e3f", // bg2
		BorderFocus: "#719cd6", // blue

		Text:    "#cdcecf", // fg1
		Muted:   "#738091", // comment
		Faint:   "#71839b", // fg3
		Accent:  "#719cd6", // blue
		Success: "#81b29a", // green
		Warning: "#dbc074", // yellow
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan

		CategoryColors: map[string]string{
			state.CategoryClothes: "#81b29a", // green
			state.CategoryShoes:   "#719cd6", // blue
			state.CategoryBags:    "#f4a261", // orange
			state.CategoryEtc:     "#9d79d6", // magenta
		},
	}
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name: "Kanagawa",

		Background: "#16161D", // sumiInk0
		Surface:    "#1F1F28", // sumiInk3
		SurfaceAlt: "#2A2A37", // sumiInk4
		FocusBg:    "#2A2A37", // sumiInk4

		SelectionBg:   "#2D4F67", // waveBlue1
		SelectionText: "#DCD7BA", // fujiWhite

		Border:      "#54546D", // sumiInk6
		BorderMuted: "#2A2A37", // sumiInk4
		BorderFocus: "#7E9CD8", // crystalBlue

		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Faint:   "#727169", // fujiGray
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#E6C384", // carpYellow
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue

		CategoryColors: map[string]string{
			state.CategoryClothes: "#98BB6C", // springGreen
			state.CategoryShoes:   "#7FB4CA", // springBlue
			state.CategoryBags:    "#E6C384", // carpYellow
			state.CategoryEtc:     "#957FB8", // oniViolet
		},
	}
}
