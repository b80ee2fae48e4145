package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/kv"
)

type fakeHandle struct {
	id      int64
	removed bool
	visible bool
}

func (h *fakeHandle) Remove()           { h.removed = true }
func (h *fakeHandle) SetVisible(v bool) { h.visible = v }

type fakeWidget struct {
	mu      sync.Mutex
	handles []*fakeHandle
	clicks  map[int64]func()
	center  geo.Point
	zoom    int
	reject  int64
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{clicks: make(map[int64]func())}
}

func (w *fakeWidget) AddMarker(m api.Marker, _ geo.Point, onClick func()) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if m.ID == w.reject {
		return nil, errors.New("rejected")
	}
	h := &fakeHandle{id: m.ID, visible: true}
	w.handles = append(w.handles, h)
	w.clicks[m.ID] = onClick
	return h, nil
}

func (w *fakeWidget) SetCenter(p geo.Point) { w.center = p }
func (w *fakeWidget) SetZoom(level int)     { w.zoom = level }

// click fires the callback registered for marker id.
func (w *fakeWidget) click(id int64) bool {
	w.mu.Lock()
	fn, ok := w.clicks[id]
	w.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

func (w *fakeWidget) live() []*fakeHandle {
	var out []*fakeHandle
	for _, h := range w.handles {
		if !h.removed {
			out = append(out, h)
		}
	}
	return out
}

// recorder captures the order of cross-store writes.
type recorder struct {
	events []string
	last   Collection
}

func (r *recorder) Project(m api.Marker) Collection {
	r.events = append(r.events, "project")
	return Project(m, nil, false)
}

func (r *recorder) Select(c Collection) {
	r.events = append(r.events, "select")
	r.last = c
}

func (r *recorder) OpenCollectionInfoPanel(c Collection) {
	r.events = append(r.events, "open")
	r.last = c
}

func readyMap(t *testing.T, src api.MarkerSource) (*MapStore, *fakeWidget, *recorder) {
	t.Helper()
	rec := &recorder{}
	store := NewMapStore(src, rec, rec, kv.NewMemory(), MapOptions{})
	widget := newFakeWidget()
	store.SetMapInstance(widget)
	store.SetMapReady(true)
	return store, widget, rec
}

func TestLoadMarkers_NotReadyPlacesNothingUntilReady(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store := NewMapStore(src, nil, nil, nil, MapOptions{})
	widget := newFakeWidget()

	require.NoError(t, store.LoadMarkers(context.Background()))
	assert.Zero(t, store.Snapshot().Count())
	assert.Zero(t, src.Calls())

	store.SetMapInstance(widget)
	require.NoError(t, store.LoadMarkers(context.Background()))
	assert.Zero(t, store.Snapshot().Count(), "instance alone is not ready")

	store.SetMapReady(true)
	assert.Zero(t, store.Snapshot().Count(), "readiness does not replay skipped loads")

	require.NoError(t, store.LoadMarkers(context.Background()))
	snap := store.Snapshot()
	assert.Equal(t, 4, snap.Count(), "the marker with a bad latitude is skipped")
	assert.Len(t, snap.Markers, 5)
	assert.Len(t, widget.live(), 4)
	assert.True(t, snap.Ready)
}

func TestLoadMarkers_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	src := newGatedSource(seedMarkers())
	store, widget, _ := readyMap(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- store.LoadMarkers(ctx) }()
	<-src.started
	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	second := make(chan error, 1)
	go func() { second <- store.LoadMarkers(context.Background()) }()
	close(src.release)

	require.NoError(t, <-second)
	snap := store.Snapshot()
	assert.NoError(t, snap.Err)
	assert.Equal(t, 4, snap.Count())
	assert.Len(t, widget.live(), 4)
}

func TestAddMarker_SkipsInvalidAndRejected(t *testing.T) {
	store, widget, _ := readyMap(t, &fakeSource{})
	widget.reject = 7

	assert.True(t, store.AddMarker(marker(1, cityHall, "ok", "", "")))
	assert.False(t, store.AddMarker(api.Marker{ID: 2, Latitude: api.Coord(200), Longitude: api.Coord(0)}))
	assert.False(t, store.AddMarker(marker(7, cityHall, "rejected", "", "")))
	assert.Equal(t, 1, store.Snapshot().Count())
}

func TestLoadMarkers_RebuildsFromScratch(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store, widget, _ := readyMap(t, src)

	require.NoError(t, store.LoadMarkers(context.Background()))
	first := widget.live()
	require.Len(t, first, 4)

	src.set(seedMarkers()[:2], nil)
	require.NoError(t, store.RefreshMarkers(context.Background()))
	for _, h := range first {
		assert.True(t, h.removed, "old handle %d should be torn down", h.id)
	}
	assert.Len(t, widget.live(), 2)
	assert.Equal(t, 2, store.Snapshot().Count())
}

func TestLoadMarkers_FailureClearsMarkerData(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store, _, _ := readyMap(t, src)
	require.NoError(t, store.LoadMarkers(context.Background()))

	src.set(nil, apperr.HTTP(500, "boom"))
	err := store.LoadMarkers(context.Background())
	require.ErrorIs(t, err, apperr.ErrHTTP)

	snap := store.Snapshot()
	assert.Empty(t, snap.Markers)
	require.ErrorIs(t, snap.Err, apperr.ErrHTTP)
	assert.False(t, snap.Loading)
}

func TestClearMarkers_IsIdempotent(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store, widget, _ := readyMap(t, src)

	store.ClearMarkers()
	assert.Zero(t, store.Snapshot().Count())

	require.NoError(t, store.LoadMarkers(context.Background()))
	require.True(t, widget.click(1))
	store.ClearMarkers()
	store.ClearMarkers()

	snap := store.Snapshot()
	assert.Zero(t, snap.Count())
	assert.False(t, snap.HasSelection)
	assert.Empty(t, widget.live())
}

func TestHandleMarkerClick_SelectsBeforeOpeningPanel(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store, widget, rec := readyMap(t, src)
	require.NoError(t, store.LoadMarkers(context.Background()))

	require.True(t, widget.click(2))
	assert.Equal(t, []string{"project", "select", "open"}, rec.events)
	assert.Equal(t, int64(2), rec.last.ID)

	snap := store.Snapshot()
	selected, ok := snap.Selected()
	require.True(t, ok)
	assert.Equal(t, "Euljiro Shoes", selected.Title)
}

func TestHandleMarkerClick_UsesCollectionLocationAndBookmarks(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	collections := NewCollectionStore(src, kv.NewMemory(), CollectionOptions{})
	ui := NewUIStore(nil, UIOptions{})
	store := NewMapStore(src, collections, ui, nil, MapOptions{})
	widget := newFakeWidget()
	store.SetMapInstance(widget)
	store.SetMapReady(true)
	require.NoError(t, store.LoadMarkers(context.Background()))

	require.True(t, widget.click(4))
	assert.Equal(t, DistancePending, ui.Snapshot().PanelCollection.Distance)

	require.NoError(t, collections.SetUserLocation(cityHall.Lat, cityHall.Lng))
	_, err := collections.ToggleBookmark(4)
	require.NoError(t, err)
	require.True(t, widget.click(4))

	panel := ui.Snapshot().PanelCollection
	require.NotNil(t, panel)
	assert.Equal(t, "0M", panel.Distance)
	assert.True(t, panel.IsBookmarked)
	assert.Equal(t, int64(4), collections.Snapshot().Selected.ID)
	assert.True(t, ui.Snapshot().ShowCollectionInfoPanel)

	assert.True(t, store.ShowMarkerInfo(1))
	assert.Equal(t, int64(1), ui.Snapshot().PanelCollection.ID)
	assert.False(t, store.ShowMarkerInfo(404))
}

func TestFilterByCategory(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store, widget, _ := readyMap(t, src)
	require.NoError(t, store.LoadMarkers(context.Background()))

	store.FilterByCategory(CategoryShoes)
	visible := store.Snapshot().VisiblePlacements()
	require.Len(t, visible, 1)
	assert.Equal(t, int64(2), visible[0].MarkerID)
	for _, h := range widget.live() {
		assert.Equal(t, h.id == 2, h.visible, "handle %d", h.id)
	}

	store.FilterByCategory(CategoryAll)
	assert.Len(t, store.Snapshot().VisiblePlacements(), 4)
	for _, h := range widget.live() {
		assert.True(t, h.visible)
	}
}

func TestBoundsAndNearest(t *testing.T) {
	src := &fakeSource{markers: seedMarkers()}
	store, _, _ := readyMap(t, src)
	require.NoError(t, store.LoadMarkers(context.Background()))

	inside := store.MarkersInBounds(geo.Around(cityHall, 1))
	require.Len(t, inside, 2)
	assert.ElementsMatch(t, []int64{1, 4}, []int64{inside[0].ID, inside[1].ID})

	far := northOf(cityHall, 11)
	nearest, ok := store.FindNearestMarker(far.Lat, far.Lng)
	require.True(t, ok)
	assert.Equal(t, int64(3), nearest.ID)

	store.ClearMarkers()
	_, ok = store.FindNearestMarker(far.Lat, far.Lng)
	assert.False(t, ok)
}

func TestMoveToAndResetView(t *testing.T) {
	store := NewMapStore(&fakeSource{}, nil, nil, nil, MapOptions{})
	widget := newFakeWidget()

	require.NoError(t, store.MoveTo(37.5, 127.0, 0))
	assert.Equal(t, FocusZoom, store.Snapshot().Zoom)
	assert.Zero(t, widget.zoom, "widget untouched before ready")

	store.SetMapInstance(widget)
	store.SetMapReady(true)
	require.NoError(t, store.MoveTo(37.4, 127.1, 14))
	assert.Equal(t, geo.Point{Lat: 37.4, Lng: 127.1}, widget.center)
	assert.Equal(t, 14, widget.zoom)

	store.ResetView()
	snap := store.Snapshot()
	assert.Equal(t, DefaultCenter, snap.Center)
	assert.Equal(t, DefaultZoom, snap.Zoom)
	assert.Equal(t, DefaultZoom, widget.zoom)

	store.SetZoom(9)
	assert.Equal(t, 9, store.Snapshot().Zoom)
	require.ErrorIs(t, store.MoveTo(100, 0, 0), apperr.ErrValidation)
}

func TestMapSaveAndRestoreState(t *testing.T) {
	storage := kv.NewMemory()
	store := NewMapStore(&fakeSource{}, nil, nil, storage, MapOptions{})
	require.NoError(t, store.MoveTo(35.1796, 129.0756, 13))
	require.NoError(t, store.SaveState())

	restored := NewMapStore(&fakeSource{}, nil, nil, storage, MapOptions{})
	require.NoError(t, restored.RestoreState())
	snap := restored.Snapshot()
	assert.Equal(t, geo.Point{Lat: 35.1796, Lng: 129.0756}, snap.Center)
	assert.Equal(t, 13, snap.Zoom)

	require.NoError(t, storage.Set(kv.KeyMapState, []byte(`{"center":{"latitude":999,"longitude":0}}`)))
	again := NewMapStore(&fakeSource{}, nil, nil, storage, MapOptions{})
	require.NoError(t, again.RestoreState())
	assert.Equal(t, DefaultCenter, again.Snapshot().Center)
}
