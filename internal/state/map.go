package state

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/kv"
)

// DefaultCenter is Seoul City Hall.
var DefaultCenter = geo.Point{Lat: 37.5666805, Lng: 126.9784147}

const (
	DefaultZoom = 12
	FocusZoom   = 15
)

// Widget is the map rendering surface. Implementations must not invoke a
// click callback from inside AddMarker.
type Widget interface {
	AddMarker(m api.Marker, at geo.Point, onClick func()) (Handle, error)
	SetCenter(p geo.Point)
	SetZoom(level int)
}

// Handle is one marker drawn on a Widget.
type Handle interface {
	Remove()
	SetVisible(visible bool)
}

// CollectionSelector is the part of the collection store the map writes to.
type CollectionSelector interface {
	Project(m api.Marker) Collection
	Select(c Collection)
}

// PanelOpener is the part of the UI store the map writes to.
type PanelOpener interface {
	OpenCollectionInfoPanel(c Collection)
}

// Placement pairs a marker with its on-map visibility. The widget handle is
// kept inside the store.
type Placement struct {
	MarkerID int64
	Marker   api.Marker
	Visible  bool
}

type placement struct {
	Placement
	handle Handle
}

// MapSnapshot is a copy of the map store.
type MapSnapshot struct {
	Ready           bool
	Center          geo.Point
	CurrentLocation geo.Point
	Zoom            int
	Placements      []Placement
	Markers         []api.Marker
	SelectedID      int64
	HasSelection    bool
	Loading         bool
	Err             error
}

// Count is the number of placements.
func (s MapSnapshot) Count() int { return len(s.Placements) }

// Selected returns the selected marker from the last load.
func (s MapSnapshot) Selected() (api.Marker, bool) {
	if !s.HasSelection {
		return api.Marker{}, false
	}
	for _, m := range s.Markers {
		if m.ID == s.SelectedID {
			return m, true
		}
	}
	return api.Marker{}, false
}

// VisiblePlacements returns the placements currently shown.
func (s MapSnapshot) VisiblePlacements() []Placement {
	var out []Placement
	for _, p := range s.Placements {
		if p.Visible {
			out = append(out, p)
		}
	}
	return out
}

// MapOptions tunes a MapStore.
type MapOptions struct {
	DefaultCenter geo.Point
	DefaultZoom   int
	Logger        *slog.Logger
}

// MapStore owns the widget, the placements and the marker selection.
type MapStore struct {
	mu         sync.RWMutex
	ready      bool
	widget     Widget
	center     geo.Point
	current    geo.Point
	zoom       int
	placements []placement
	markers    []api.Marker
	selectedID int64
	hasSel     bool
	loading    bool
	err        error

	source        api.MarkerSource
	collections   CollectionSelector
	panels        PanelOpener
	storage       kv.Storage
	loads         singleflight.Group
	defaultCenter geo.Point
	defaultZoom   int
	logger        *slog.Logger
}

// NewMapStore wires the map store to its collaborators. It starts not ready.
func NewMapStore(source api.MarkerSource, collections CollectionSelector, panels PanelOpener, storage kv.Storage, opts MapOptions) *MapStore {
	s := &MapStore{
		source:        source,
		collections:   collections,
		panels:        panels,
		storage:       storage,
		defaultCenter: opts.DefaultCenter,
		defaultZoom:   opts.DefaultZoom,
		logger:        opts.Logger,
	}
	if s.defaultCenter == (geo.Point{}) || !geo.Valid(s.defaultCenter) {
		s.defaultCenter = DefaultCenter
	}
	if s.defaultZoom <= 0 {
		s.defaultZoom = DefaultZoom
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.center = s.defaultCenter
	s.current = s.defaultCenter
	s.zoom = s.defaultZoom
	return s
}

// Snapshot returns a copy of the current state.
func (s *MapStore) Snapshot() MapSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := MapSnapshot{
		Ready:           s.ready,
		Center:          s.center,
		CurrentLocation: s.current,
		Zoom:            s.zoom,
		Markers:         slices.Clone(s.markers),
		SelectedID:      s.selectedID,
		HasSelection:    s.hasSel,
		Loading:         s.loading,
	}
	if len(s.placements) > 0 {
		snap.Placements = make([]Placement, len(s.placements))
		for i, p := range s.placements {
			snap.Placements[i] = p.Placement
		}
	}
	if s.err != nil {
		snap.Err = fmt.Errorf("%w", s.err)
	}
	return snap
}

// SetMapInstance attaches the rendering widget.
func (s *MapStore) SetMapInstance(w Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widget = w
}

// SetMapReady flips the readiness gate. Becoming ready does not replay
// loads that were skipped earlier.
func (s *MapStore) SetMapReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
	s.logger.Debug("map readiness changed", slog.Bool("ready", ready))
}

// Ready reports whether markers can be placed.
func (s *MapStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readyLocked()
}

func (s *MapStore) readyLocked() bool {
	return s.ready && s.widget != nil
}

// SetCurrentLocation records the user's position on the map.
func (s *MapStore) SetCurrentLocation(lat, lng float64) error {
	p := geo.Point{Lat: lat, Lng: lng}
	if !geo.Valid(p) {
		return apperr.Validation(fmt.Sprintf("invalid location %v,%v", lat, lng), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p
	return nil
}

// MoveTo recenters the map. A zoom of zero means FocusZoom. The widget is
// only touched when ready.
func (s *MapStore) MoveTo(lat, lng float64, zoom int) error {
	p := geo.Point{Lat: lat, Lng: lng}
	if !geo.Valid(p) {
		return apperr.Validation(fmt.Sprintf("invalid location %v,%v", lat, lng), nil)
	}
	if zoom <= 0 {
		zoom = FocusZoom
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = p
	s.zoom = zoom
	if s.readyLocked() {
		s.widget.SetCenter(p)
		s.widget.SetZoom(zoom)
	}
	return nil
}

// ResetView returns to the default center and zoom.
func (s *MapStore) ResetView() {
	_ = s.MoveTo(s.defaultCenter.Lat, s.defaultCenter.Lng, s.defaultZoom)
}

// SetZoom changes the zoom level.
func (s *MapStore) SetZoom(level int) {
	if level <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoom = level
	if s.readyLocked() {
		s.widget.SetZoom(level)
	}
}

// LoadMarkers fetches every marker and rebuilds the placements from
// scratch. Before the map is ready the call is skipped and logged; nothing
// is queued. A failed fetch leaves no markers and records the error.
func (s *MapStore) LoadMarkers(ctx context.Context) error {
	if !s.Ready() {
		s.logger.Info("map not ready, skipping marker load")
		return nil
	}

	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	markers, _, err := fetchMarkers(ctx, &s.loads, s.source)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return ctxErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.markers = nil
		s.err = err
		s.logger.Warn("load markers failed", slog.String("error", err.Error()))
		return err
	}

	s.clearLocked()
	s.markers = slices.Clone(markers)
	placed := 0
	for _, m := range markers {
		if s.addLocked(m) {
			placed++
		}
	}
	s.logger.Info("markers placed", slog.Int("fetched", len(markers)), slog.Int("placed", placed))
	return nil
}

// RefreshMarkers clears the map and loads again.
func (s *MapStore) RefreshMarkers(ctx context.Context) error {
	s.ClearMarkers()
	return s.LoadMarkers(ctx)
}

// AddMarker places a single marker. It reports false when the map is not
// ready or the coordinates are unusable.
func (s *MapStore) AddMarker(m api.Marker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(m)
}

func (s *MapStore) addLocked(m api.Marker) bool {
	if !s.readyLocked() {
		s.logger.Debug("map not ready, skipping marker", slog.Int64("id", m.ID))
		return false
	}
	p, ok := m.Point()
	if !ok {
		s.logger.Warn("skipping marker with invalid coordinates",
			slog.Int64("id", m.ID),
			slog.Bool("lat_valid", m.Latitude.Valid),
			slog.Bool("lng_valid", m.Longitude.Valid))
		return false
	}
	data := m
	handle, err := s.widget.AddMarker(m, p, func() { s.HandleMarkerClick(data) })
	if err != nil {
		s.logger.Warn("widget rejected marker", slog.Int64("id", m.ID), slog.String("error", err.Error()))
		return false
	}
	s.placements = append(s.placements, placement{
		Placement: Placement{MarkerID: m.ID, Marker: m, Visible: true},
		handle:    handle,
	})
	return true
}

// HandleMarkerClick selects m, pushes its collection projection into the
// collection store and then opens the info panel, in that order.
func (s *MapStore) HandleMarkerClick(m api.Marker) {
	s.mu.Lock()
	s.selectedID, s.hasSel = m.ID, true
	s.mu.Unlock()

	c := s.ConvertMarker(m)
	if s.collections != nil {
		s.collections.Select(c)
	}
	if s.panels != nil {
		s.panels.OpenCollectionInfoPanel(c)
	}
}

// ConvertMarker projects m using the collection store's location and
// bookmarks.
func (s *MapStore) ConvertMarker(m api.Marker) Collection {
	if s.collections == nil {
		return Project(m, nil, false)
	}
	return s.collections.Project(m)
}

// ShowMarkerInfo behaves like a click on the placement for id. It reports
// false when no such placement exists.
func (s *MapStore) ShowMarkerInfo(id int64) bool {
	s.mu.RLock()
	var (
		m     api.Marker
		found bool
	)
	for _, p := range s.placements {
		if p.MarkerID == id {
			m, found = p.Marker, true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return false
	}
	s.HandleMarkerClick(m)
	return true
}

// ClearMarkers removes every placement from the widget and forgets them
// along with the selection. Safe to call repeatedly.
func (s *MapStore) ClearMarkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *MapStore) clearLocked() {
	for _, p := range s.placements {
		if p.handle != nil {
			p.handle.Remove()
		}
	}
	s.placements = nil
	s.selectedID, s.hasSel = 0, false
}

// FilterByCategory shows placements in category and hides the rest.
// CategoryAll shows everything.
func (s *MapStore) FilterByCategory(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.placements {
		p := &s.placements[i]
		p.Visible = category == CategoryAll || categoryOf(p.Marker) == category
		if p.handle != nil {
			p.handle.SetVisible(p.Visible)
		}
	}
}

// MarkersInBounds returns placed markers inside b.
func (s *MapStore) MarkersInBounds(b geo.Bounds) []api.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []api.Marker
	for _, p := range s.placements {
		if pt, ok := p.Marker.Point(); ok && b.Contains(pt) {
			out = append(out, p.Marker)
		}
	}
	return out
}

// FindNearestMarker returns the placed marker closest to lat/lng.
func (s *MapStore) FindNearestMarker(lat, lng float64) (api.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	origin := geo.Point{Lat: lat, Lng: lng}
	var (
		best    api.Marker
		found   bool
		nearest = math.Inf(1)
	)
	for _, p := range s.placements {
		pt, ok := p.Marker.Point()
		if !ok {
			continue
		}
		if d := geo.Distance(origin, pt); d < nearest {
			nearest, best, found = d, p.Marker, true
		}
	}
	return best, found
}

type savedMapState struct {
	Center geo.Point `json:"center"`
	Zoom   int       `json:"zoom"`
}

// SaveState persists the center and zoom.
func (s *MapStore) SaveState() error {
	if s.storage == nil {
		return nil
	}
	s.mu.RLock()
	saved := savedMapState{Center: s.center, Zoom: s.zoom}
	s.mu.RUnlock()
	if err := kv.SetJSON(s.storage, kv.KeyMapState, saved); err != nil {
		s.logger.Warn("save map state failed", slog.String("error", err.Error()))
		return apperr.Storage("save map state", err)
	}
	return nil
}

// RestoreState applies what SaveState wrote. Invalid saved values are
// ignored.
func (s *MapStore) RestoreState() error {
	if s.storage == nil {
		return nil
	}
	var saved savedMapState
	found, err := kv.GetJSON(s.storage, kv.KeyMapState, &saved)
	if err != nil {
		s.logger.Warn("restore map state failed", slog.String("error", err.Error()))
		return apperr.Storage("restore map state", err)
	}
	if !found || !geo.Valid(saved.Center) {
		return nil
	}
	zoom := saved.Zoom
	if zoom <= 0 {
		zoom = s.defaultZoom
	}
	return s.MoveTo(saved.Center.Lat, saved.Center.Lng, zoom)
}
