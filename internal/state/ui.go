package state

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/dropit-app/dropit/internal/kv"
)

// Screen width breakpoints.
const (
	MobileMaxWidth = 768
	TabletMaxWidth = 1024
)

const (
	DefaultNotificationDuration = 3 * time.Second
	DefaultLoadingMessage       = "Loading..."
	MenuCollection              = "collection"
)

// NotificationType classifies a notification.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifySuccess NotificationType = "success"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Notification is one entry of the notification queue.
type Notification struct {
	ID        string
	Message   string
	Type      NotificationType
	Duration  time.Duration
	Read      bool
	Timestamp time.Time
}

// UISnapshot is a copy of the UI store.
type UISnapshot struct {
	ShowCollectionInfoPanel bool
	ShowUserProfile         bool
	ShowSettings            bool
	PanelCollection         *Collection

	ShowLoginModal  bool
	ShowSignupModal bool

	ShowSidebar      bool
	SidebarCollapsed bool

	AppLoading     bool
	LoadingMessage string

	Notifications []Notification

	IsMobile     bool
	IsTablet     bool
	ScreenWidth  int
	ScreenHeight int

	ActiveMenu    string
	Searching     bool
	SearchResults []Collection
}

func (s UISnapshot) IsMobileDevice() bool { return s.ScreenWidth <= MobileMaxWidth }

func (s UISnapshot) IsTabletDevice() bool {
	return s.ScreenWidth > MobileMaxWidth && s.ScreenWidth <= TabletMaxWidth
}

func (s UISnapshot) IsDesktopDevice() bool { return s.ScreenWidth > TabletMaxWidth }

// UnreadCount counts unread notifications.
func (s UISnapshot) UnreadCount() int {
	n := 0
	for _, note := range s.Notifications {
		if !note.Read {
			n++
		}
	}
	return n
}

func (s UISnapshot) HasAnyPanelOpen() bool {
	return s.ShowCollectionInfoPanel || s.ShowUserProfile || s.ShowSettings
}

func (s UISnapshot) IsAnyLoading() bool { return s.AppLoading || s.Searching }

// UIOptions tunes a UIStore.
type UIOptions struct {
	Now    func() time.Time
	Logger *slog.Logger
}

// UIStore holds presentation state. It never touches the network.
type UIStore struct {
	mu     sync.RWMutex
	state  UISnapshot
	timers map[string]*time.Timer

	storage kv.Storage
	now     func() time.Time
	logger  *slog.Logger
}

// NewUIStore returns a store in its initial state.
func NewUIStore(storage kv.Storage, opts UIOptions) *UIStore {
	s := &UIStore{
		state:   initialUI(),
		timers:  make(map[string]*time.Timer),
		storage: storage,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Screen size assumed until UpdateScreenSize is called.
const (
	initialScreenWidth  = 1280
	initialScreenHeight = 800
)

func initialUI() UISnapshot {
	return UISnapshot{
		ShowSidebar:  true,
		ActiveMenu:   MenuCollection,
		ScreenWidth:  initialScreenWidth,
		ScreenHeight: initialScreenHeight,
	}
}

// Snapshot returns a copy of the current state.
func (s *UIStore) Snapshot() UISnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state
	snap.Notifications = slices.Clone(s.state.Notifications)
	snap.SearchResults = slices.Clone(s.state.SearchResults)
	if s.state.PanelCollection != nil {
		c := *s.state.PanelCollection
		snap.PanelCollection = &c
	}
	return snap
}

// OpenCollectionInfoPanel shows c in the info panel. Other panels stay as
// they are. On mobile the sidebar is hidden.
func (s *UIStore) OpenCollectionInfoPanel(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PanelCollection = &c
	s.state.ShowCollectionInfoPanel = true
	if s.state.IsMobileDevice() {
		s.state.ShowSidebar = false
	}
	s.logger.Debug("info panel opened", slog.Int64("id", c.ID))
}

// CloseCollectionInfoPanel hides the info panel and, on mobile, restores the
// sidebar.
func (s *UIStore) CloseCollectionInfoPanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowCollectionInfoPanel = false
	s.state.PanelCollection = nil
	if s.state.IsMobileDevice() {
		s.state.ShowSidebar = true
	}
}

func (s *UIStore) OpenUserProfile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAllPanelsLocked()
	s.state.ShowUserProfile = true
}

func (s *UIStore) OpenSettings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAllPanelsLocked()
	s.state.ShowSettings = true
}

// CloseAllPanels hides every major panel. Unlike CloseCollectionInfoPanel it
// leaves the sidebar alone.
func (s *UIStore) CloseAllPanels() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeAllPanelsLocked()
}

func (s *UIStore) closeAllPanelsLocked() {
	s.state.ShowCollectionInfoPanel = false
	s.state.ShowUserProfile = false
	s.state.ShowSettings = false
	s.state.PanelCollection = nil
}

func (s *UIStore) OpenLoginModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowLoginModal = true
	s.state.ShowSignupModal = false
}

func (s *UIStore) OpenSignupModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowSignupModal = true
	s.state.ShowLoginModal = false
}

func (s *UIStore) CloseAllModals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowLoginModal = false
	s.state.ShowSignupModal = false
}

func (s *UIStore) ToggleSidebar() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShowSidebar = !s.state.ShowSidebar
}

func (s *UIStore) CollapseSidebar() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SidebarCollapsed = true
}

func (s *UIStore) ExpandSidebar() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SidebarCollapsed = false
}

func (s *UIStore) SetActiveMenu(menu string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ActiveMenu = menu
}

// StartAppLoading raises the app loading flag. An empty message uses
// DefaultLoadingMessage.
func (s *UIStore) StartAppLoading(message string) {
	if message == "" {
		message = DefaultLoadingMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AppLoading = true
	s.state.LoadingMessage = message
}

func (s *UIStore) StopAppLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AppLoading = false
	s.state.LoadingMessage = ""
}

func (s *UIStore) StartSearching() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Searching = true
}

func (s *UIStore) StopSearching() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Searching = false
}

func (s *UIStore) SetSearchResults(results []Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SearchResults = slices.Clone(results)
}

func (s *UIStore) ClearSearchResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SearchResults = nil
}

// AddNotification puts n at the head of the queue and returns its ID. A zero
// Duration uses DefaultNotificationDuration; a negative one never expires.
func (s *UIStore) AddNotification(n Notification) string {
	id, err := gonanoid.New()
	if err != nil {
		id = fmt.Sprintf("n%d", s.now().UnixNano())
	}
	n.ID = id
	if n.Type == "" {
		n.Type = NotifyInfo
	}
	if n.Duration == 0 {
		n.Duration = DefaultNotificationDuration
	}
	n.Read = false
	n.Timestamp = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Notifications = slices.Insert(s.state.Notifications, 0, n)
	if n.Duration > 0 {
		s.timers[id] = time.AfterFunc(n.Duration, func() { s.RemoveNotification(id) })
	}
	return id
}

// Notify is AddNotification with the default duration.
func (s *UIStore) Notify(kind NotificationType, message string) string {
	return s.AddNotification(Notification{Type: kind, Message: message})
}

// RemoveNotification drops id. Unknown IDs are ignored.
func (s *UIStore) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.state.Notifications = slices.DeleteFunc(s.state.Notifications, func(n Notification) bool {
		return n.ID == id
	})
}

func (s *UIStore) MarkNotificationRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Notifications {
		if s.state.Notifications[i].ID == id {
			s.state.Notifications[i].Read = true
			return
		}
	}
}

func (s *UIStore) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearNotificationsLocked()
}

func (s *UIStore) clearNotificationsLocked() {
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.state.Notifications = nil
}

// UpdateScreenSize recomputes the device flags from the given dimensions.
func (s *UIStore) UpdateScreenSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ScreenWidth = width
	s.state.ScreenHeight = height
	s.state.IsMobile = s.state.IsMobileDevice()
	s.state.IsTablet = s.state.IsTabletDevice()
}

type savedUIState struct {
	SidebarCollapsed *bool   `json:"sidebarCollapsed"`
	ActiveMenu       *string `json:"activeMenu"`
	ShowSidebar      *bool   `json:"showSidebar"`
}

// SaveUIState persists the sidebar and menu preferences. Failures are logged.
func (s *UIStore) SaveUIState() {
	if s.storage == nil {
		return
	}
	s.mu.RLock()
	saved := savedUIState{
		SidebarCollapsed: &s.state.SidebarCollapsed,
		ActiveMenu:       &s.state.ActiveMenu,
		ShowSidebar:      &s.state.ShowSidebar,
	}
	err := kv.SetJSON(s.storage, kv.KeyUIState, saved)
	s.mu.RUnlock()
	if err != nil {
		s.logger.Warn("save ui state failed", slog.String("error", err.Error()))
	}
}

// RestoreUIState applies what SaveUIState wrote. Absent fields take their
// initial values; unreadable state is logged and ignored.
func (s *UIStore) RestoreUIState() {
	if s.storage == nil {
		return
	}
	var saved savedUIState
	found, err := kv.GetJSON(s.storage, kv.KeyUIState, &saved)
	if err != nil {
		s.logger.Warn("restore ui state failed", slog.String("error", err.Error()))
		return
	}
	if !found {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SidebarCollapsed = saved.SidebarCollapsed != nil && *saved.SidebarCollapsed
	s.state.ActiveMenu = MenuCollection
	if saved.ActiveMenu != nil {
		s.state.ActiveMenu = *saved.ActiveMenu
	}
	s.state.ShowSidebar = saved.ShowSidebar == nil || *saved.ShowSidebar
}

// ResetUIState closes everything, drops notifications and search results and
// restores the sidebar and menu defaults. Screen size is kept.
func (s *UIStore) ResetUIState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearNotificationsLocked()
	w, h := s.state.ScreenWidth, s.state.ScreenHeight
	s.state = initialUI()
	s.state.ScreenWidth, s.state.ScreenHeight = w, h
	s.state.IsMobile = s.state.IsMobileDevice()
	s.state.IsTablet = s.state.IsTabletDevice()
}
