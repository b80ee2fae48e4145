package ui

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/auth"
	"github.com/dropit-app/dropit/internal/config"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/prefs"
	"github.com/dropit-app/dropit/internal/state"
)

// Focus is the pane receiving navigation keys.
type Focus int

const (
	FocusList Focus = iota
	FocusMap
)

// Menus cycled by the list pane. MenuCollection is the filtered list.
var menuOrder = []string{state.MenuCollection, "nearby", "recommended", "bookmarks"}

// Prober checks backend reachability.
type Prober interface {
	ProbeAll(ctx context.Context) api.ConnectivityReport
}

// Options configures the UI.
type Options struct {
	Context     context.Context
	Collections *state.CollectionStore
	Map         *state.MapStore
	UI          *state.UIStore
	// View must already be installed on Map with SetMapInstance. The model
	// reports the map ready once the terminal size is known.
	View      *MapView
	Session   *auth.Session
	Prober    Prober
	Config    *config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	PollTick  time.Duration
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx         context.Context
	collections *state.CollectionStore
	maps        *state.MapStore
	uiStore     *state.UIStore
	view        *MapView
	session     *auth.Session
	prober      Prober
	config      *config.Config
	prefs       prefs.Prefs
	prefsPath   string
	pollTick    time.Duration
	logger      *slog.Logger
	keys        keyMap

	// UI state
	theme  Theme
	focus  Focus
	width  int
	height int
	ready  bool

	// Data state
	coll        state.CollectionSnapshot
	mapSnap     state.MapSnapshot
	uiSnap      state.UISnapshot
	lastUpdated time.Time
	report      *api.ConnectivityReport

	// List state
	selectedRow int

	// Search
	searchActive bool
	searchInput  textinput.Model

	// Help overlay
	showHelp bool

	// Login/signup modal
	authInputs   [3]textinput.Model // name, email, password
	authFocusIdx int
	authPending  bool
	authErr      string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	view := opts.View
	if view == nil {
		view = NewMapView()
	}

	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Defaults()
	}

	m := Model{
		ctx:         ctx,
		collections: opts.Collections,
		maps:        opts.Map,
		uiStore:     opts.UI,
		view:        view,
		session:     opts.Session,
		prober:      opts.Prober,
		config:      opts.Config,
		prefs:       p,
		prefsPath:   opts.PrefsPath,
		pollTick:    pollTick,
		logger:      logger,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(p.Theme),
		focus:       FocusList,
	}
	m.initSearchInput()
	m.initAuthInputs()
	m.pull()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.prober != nil {
		cmds = append(cmds, probeCmd(m.ctx, m.prober))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.uiStore.UpdateScreenSize(msg.Width*CellPixelWidth, msg.Height*CellPixelHeight)
		var cmd tea.Cmd
		if !m.ready {
			// The map can draw now; loads issued before this point were dropped.
			m.maps.SetMapReady(true)
			// Push a center restored before the widget was ready.
			c := m.mapSnap.Center
			if err := m.maps.MoveTo(c.Lat, c.Lng, m.mapSnap.Zoom); err != nil {
				m.logger.Debug("sync map view failed", "error", err)
			}
			cmd = loadCmd(m.ctx, m.collections, m.maps, m.uiStore, false)
		}
		m.ready = true
		m.pull()
		return m, cmd

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.apply(msg)
		return m, nil

	case loadDoneMsg:
		m.handleLoadDone(msg)
		return m, nil

	case authDoneMsg:
		m.handleAuthDone(msg)
		return m, nil

	case probeMsg:
		report := api.ConnectivityReport(msg)
		m.report = &report
		if !report.OK() {
			m.uiStore.Notify(state.NotifyWarning, "backend checks failed: "+strings.Join(report.Failed(), ", "))
			m.pull()
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if m.uiSnap.ShowLoginModal || m.uiSnap.ShowSignupModal {
		return m.renderAuthModal()
	}

	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.uiSnap.ShowLoginModal || m.uiSnap.ShowSignupModal {
		return m.handleAuthKey(msg)
	}

	if m.searchActive {
		return m.handleSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Legend):
		m.prefs.ShowLegend = !m.prefs.ShowLegend
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focus == FocusList {
			m.focus = FocusMap
		} else {
			m.focus = FocusList
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.closePanels()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, loadCmd(m.ctx, m.collections, m.maps, m.uiStore, true)

	case key.Matches(msg, m.keys.Account):
		if m.session != nil && m.session.IsValid() {
			m.uiStore.OpenUserProfile()
		} else {
			m.openAuthModal(false)
		}
		m.pull()
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.uiStore.OpenSettings()
		m.pull()
		return m, nil

	case key.Matches(msg, m.keys.Sidebar):
		m.uiStore.ToggleSidebar()
		m.pull()
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		m.uiStore.ClearAllNotifications()
		m.pull()
		return m, nil
	}

	if m.focus == FocusMap {
		return m.handleMapKey(msg)
	}
	return m.handleListKey(msg)
}

// closePanels closes the info panel first, then everything else.
func (m *Model) closePanels() {
	switch {
	case m.uiSnap.ShowCollectionInfoPanel:
		m.uiStore.CloseCollectionInfoPanel()
		m.collections.ClearSelection()
	case m.uiSnap.HasAnyPanelOpen():
		m.uiStore.CloseAllPanels()
	default:
		m.focus = FocusList
	}
	m.pull()
}

// handleTick processes the polling tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	return m, tea.Batch(
		fetchSnapshotCmd(m.collections, m.maps, m.uiStore),
		tickCmd(m.pollTick),
	)
}

func (m *Model) handleLoadDone(msg loadDoneMsg) {
	switch {
	case msg.err != nil:
		m.logger.Warn("load failed", "error", msg.err, "refresh", msg.refresh)
		m.uiStore.Notify(state.NotifyError, apperr.Message(msg.err))
	case msg.refresh:
		m.uiStore.Notify(state.NotifySuccess, "Collection points refreshed")
	}
	m.pull()
}

// pull copies fresh snapshots out of the stores.
func (m *Model) pull() {
	m.apply(snapshotMsg{
		collections: m.collections.Snapshot(),
		maps:        m.maps.Snapshot(),
		ui:          m.uiStore.Snapshot(),
	})
}

func (m *Model) apply(msg snapshotMsg) {
	m.coll = msg.collections
	m.mapSnap = msg.maps
	m.uiSnap = msg.ui
	m.lastUpdated = time.Now()
	if n := len(m.listItems()); m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "error", err)
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg struct {
	collections state.CollectionSnapshot
	maps        state.MapSnapshot
	ui          state.UISnapshot
}

type loadDoneMsg struct {
	err     error
	refresh bool
}

type probeMsg api.ConnectivityReport

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(collections *state.CollectionStore, maps *state.MapStore, ui *state.UIStore) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{
			collections: collections.Snapshot(),
			maps:        maps.Snapshot(),
			ui:          ui.Snapshot(),
		}
	}
}

// loadCmd loads the collection list and the map markers. The two stores
// fetch independently; a failure in one does not stop the other.
func loadCmd(ctx context.Context, collections *state.CollectionStore, maps *state.MapStore, ui *state.UIStore, refresh bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()

		message := "Loading collection points..."
		if refresh {
			message = "Refreshing collection points..."
		}
		ui.StartAppLoading(message)
		defer ui.StopAppLoading()

		var collErr, mapErr error
		if refresh {
			collErr = collections.Refresh(ctx)
			mapErr = maps.RefreshMarkers(ctx)
		} else {
			collErr = collections.Load(ctx)
			mapErr = maps.LoadMarkers(ctx)
		}
		// Both stores hit the same backend; the first failure is enough.
		err := collErr
		if err == nil {
			err = mapErr
		}
		return loadDoneMsg{err: err, refresh: refresh}
	}
}

func probeCmd(ctx context.Context, prober Prober) tea.Cmd {
	return func() tea.Msg {
		return probeMsg(prober.ProbeAll(ctx))
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(opts Options) error {
	m := New(opts)
	ctx := m.ctx
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
