package state

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/kv"
)

var cityHall = geo.Point{Lat: 37.5666805, Lng: 126.9784147}

type fakeSource struct {
	mu      sync.Mutex
	markers []api.Marker
	err     error
	calls   int
}

func (f *fakeSource) ListMarkers(ctx context.Context) ([]api.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]api.Marker, len(f.markers))
	copy(out, f.markers)
	return out, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) set(markers []api.Marker, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers, f.err = markers, err
}

// gatedSource holds every ListMarkers call until release is closed or its
// ctx ends.
type gatedSource struct {
	markers []api.Marker
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func newGatedSource(markers []api.Marker) *gatedSource {
	return &gatedSource{markers: markers, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) ListMarkers(ctx context.Context) ([]api.Marker, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.markers, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flakyStorage fails every Set once failSet is raised.
type flakyStorage struct {
	*kv.Memory
	failSet bool
}

func (f *flakyStorage) Set(key string, value []byte) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.Memory.Set(key, value)
}

// northOf returns the point km kilometres due north of p.
func northOf(p geo.Point, km float64) geo.Point {
	return geo.Point{Lat: p.Lat + km/geo.EarthRadiusKm*180/math.Pi, Lng: p.Lng}
}

func marker(id int64, at geo.Point, title, category, created string) api.Marker {
	return api.Marker{
		ID:          id,
		Latitude:    api.Coord(at.Lat),
		Longitude:   api.Coord(at.Lng),
		Title:       title,
		Description: title + " bin",
		Category:    category,
		CreatedAt:   created,
	}
}

func seedMarkers() []api.Marker {
	return []api.Marker{
		marker(1, northOf(cityHall, 0.4), "Jongno Clothes", CategoryClothes, "2025-01-01T09:00:00"),
		marker(2, northOf(cityHall, 1.5), "Euljiro Shoes", CategoryShoes, "2025-03-01T09:00:00"),
		marker(3, northOf(cityHall, 12), "Far Bags", CategoryBags, "2025-02-01T09:00:00"),
		marker(4, cityHall, "City Hall", "furniture", "2025-04-01T09:00:00"),
		{ID: 5, Latitude: api.Coordinate{}, Longitude: api.Coord(127), Title: "Broken", CreatedAt: "2024-12-01T09:00:00"},
	}
}

func newCollectionFixture(t *testing.T) (*CollectionStore, *fakeSource, kv.Storage) {
	t.Helper()
	src := &fakeSource{markers: seedMarkers()}
	storage := kv.NewMemory()
	store := NewCollectionStore(src, storage, CollectionOptions{})
	require.NoError(t, store.Load(context.Background()))
	return store, src, storage
}

func ids(items []Collection) []int64 {
	out := make([]int64, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}

func TestProject_PlaceholdersAndDistanceText(t *testing.T) {
	m := api.Marker{ID: 9, Latitude: api.Coord(cityHall.Lat), Longitude: api.Coord(cityHall.Lng)}

	c := Project(m, nil, false)
	assert.Equal(t, PlaceholderAddress, c.Address)
	assert.Equal(t, PlaceholderDetail, c.DetailAddress)
	assert.Equal(t, PlaceholderCreator, c.CreatedBy)
	assert.Equal(t, CategoryEtc, c.Category)
	assert.Equal(t, DistancePending, c.Distance)
	assert.Nil(t, c.DistanceKm)

	here := cityHall
	c = Project(m, &here, true)
	assert.Equal(t, "0M", c.Distance)
	assert.True(t, c.IsBookmarked)
	assert.False(t, c.IsFavorite)
	assert.Nil(t, c.Rating)

	assert.Equal(t, "1.5KM", Project(marker(1, northOf(cityHall, 1.5), "a", "", ""), &here, false).Distance)
	assert.Equal(t, "400M", Project(marker(1, northOf(cityHall, 0.4), "a", "", ""), &here, false).Distance)

	broken := api.Marker{ID: 10, Longitude: api.Coord(127)}
	assert.Equal(t, DistanceUnknown, Project(broken, &here, false).Distance)
}

func TestLoad_ProjectsEveryMarker(t *testing.T) {
	store, src, _ := newCollectionFixture(t)
	snap := store.Snapshot()

	assert.Equal(t, 1, src.Calls())
	assert.Len(t, snap.Collections, 5)
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.LastRefresh.IsZero())
	assert.True(t, snap.ShouldShowCollections())
	for _, c := range snap.Collections {
		assert.Equal(t, DistancePending, c.Distance)
	}
}

func TestLoad_ErrorIsRecordedAndReturned(t *testing.T) {
	src := &fakeSource{err: apperr.Unreachable(errors.New("refused"))}
	store := NewCollectionStore(src, nil, CollectionOptions{})

	err := store.Load(context.Background())
	require.ErrorIs(t, err, apperr.ErrUnreachable)

	snap := store.Snapshot()
	require.ErrorIs(t, snap.Err, apperr.ErrUnreachable)
	assert.True(t, snap.ShouldShowErrorState())
	assert.False(t, snap.ShouldShowEmptyState())
	assert.False(t, snap.ShouldShowCollections())

	src.set(nil, nil)
	require.NoError(t, store.Refresh(context.Background()))
	snap = store.Snapshot()
	assert.NoError(t, snap.Err)
	assert.False(t, snap.Refreshing)
	assert.True(t, snap.ShouldShowEmptyState())
}

func TestLoad_CancelledContextLeavesStoreUntouched(t *testing.T) {
	store, src, _ := newCollectionFixture(t)
	src.set([]api.Marker{marker(99, cityHall, "new", "", "")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := store.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.Snapshot().Collections, 5)
	assert.False(t, store.Snapshot().Loading)
}

func TestLoad_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	src := newGatedSource(seedMarkers())
	store := NewCollectionStore(src, kv.NewMemory(), CollectionOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- store.Load(ctx) }()
	<-src.started
	cancel()
	require.ErrorIs(t, <-first, context.Canceled)

	second := make(chan error, 1)
	go func() { second <- store.Load(context.Background()) }()
	close(src.release)

	require.NoError(t, <-second)
	snap := store.Snapshot()
	assert.NoError(t, snap.Err)
	assert.False(t, snap.ShouldShowErrorState())
	assert.Len(t, snap.Collections, 5)
}

func TestFilteredCollections_IsIdempotent(t *testing.T) {
	store, _, _ := newCollectionFixture(t)
	require.NoError(t, store.SetUserLocation(cityHall.Lat, cityHall.Lng))

	for _, sortBy := range []string{SortDistance, SortRating, SortRecent} {
		require.NoError(t, store.SetFilter(FilterSortBy, sortBy))
		snap := store.Snapshot()
		assert.Equal(t, snap.FilteredCollections(), snap.FilteredCollections(), sortBy)
		assert.Equal(t, snap.FilteredCollections(), store.Snapshot().FilteredCollections(), sortBy)
	}
}

func TestFilteredCollections_Pipeline(t *testing.T) {
	store, _, _ := newCollectionFixture(t)

	// No location: nothing has a distance, so the max-distance filter lets
	// everything through and the distance sort keeps load order.
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(store.Snapshot().FilteredCollections()))

	require.NoError(t, store.SetUserLocation(cityHall.Lat, cityHall.Lng))
	// Far Bags is 12 km away, beyond the default 10 km. Broken has no
	// distance and sorts last.
	assert.Equal(t, []int64{4, 1, 2, 5}, ids(store.Snapshot().FilteredCollections()))

	require.NoError(t, store.SetFilter(FilterMaxDistance, 0))
	assert.Equal(t, []int64{4, 1, 2, 3, 5}, ids(store.Snapshot().FilteredCollections()))

	store.SearchCollections("SHOES BIN")
	assert.Equal(t, []int64{2}, ids(store.Snapshot().FilteredCollections()))
	store.SearchCollections("")

	require.NoError(t, store.SetFilter(FilterCategory, CategoryEtc))
	assert.Equal(t, []int64{5}, ids(store.Snapshot().FilteredCollections()), "furniture is not folded into etc when filtering")
	require.NoError(t, store.SetFilter(FilterCategory, CategoryBags))
	assert.Equal(t, []int64{3}, ids(store.Snapshot().FilteredCollections()))
	require.NoError(t, store.SetFilter(FilterCategory, CategoryAll))

	_, err := store.ToggleBookmark(2)
	require.NoError(t, err)
	require.NoError(t, store.SetFilter(FilterShowBookmarkedOnly, true))
	assert.Equal(t, []int64{2}, ids(store.Snapshot().FilteredCollections()))
	require.NoError(t, store.SetFilter(FilterShowBookmarkedOnly, false))

	require.NoError(t, store.SetFilter(FilterSortBy, SortRecent))
	assert.Equal(t, []int64{4, 2, 3, 1, 5}, ids(store.Snapshot().FilteredCollections()))
}

func TestFilteredCollections_RatingSort(t *testing.T) {
	low, high := 2.0, 4.5
	snap := CollectionSnapshot{
		Filters: Filters{SortBy: SortRating, Category: CategoryAll},
		Collections: []Collection{
			{ID: 1},
			{ID: 2, Rating: &low},
			{ID: 3, Rating: &high},
		},
	}
	assert.Equal(t, []int64{3, 2, 1}, ids(snap.FilteredCollections()))
}

func TestSetFilter_RejectsBadInput(t *testing.T) {
	store := NewCollectionStore(&fakeSource{}, nil, CollectionOptions{})
	before := store.Filters()

	require.ErrorIs(t, store.SetFilter("colour", "red"), apperr.ErrValidation)
	require.ErrorIs(t, store.SetFilter(FilterSortBy, "price"), apperr.ErrValidation)
	require.ErrorIs(t, store.SetFilter(FilterCategory, "hats"), apperr.ErrValidation)
	require.ErrorIs(t, store.SetFilter(FilterMaxDistance, -1.0), apperr.ErrValidation)
	require.ErrorIs(t, store.SetFilter(FilterShowBookmarkedOnly, "yes"), apperr.ErrValidation)
	assert.Equal(t, before, store.Filters())
}

func TestResetFilters_AlwaysYieldsDefaults(t *testing.T) {
	store := NewCollectionStore(&fakeSource{}, nil, CollectionOptions{})
	require.NoError(t, store.SetFilter(FilterSortBy, SortRecent))
	require.NoError(t, store.SetFilter(FilterCategory, CategoryShoes))
	require.NoError(t, store.SetFilter(FilterShowBookmarkedOnly, true))
	require.NoError(t, store.SetFilter(FilterMaxDistance, 2.5))
	store.SearchCollections("mapo")

	store.ResetFilters()
	assert.Equal(t, Filters{
		SortBy:             "distance",
		Category:           "all",
		ShowBookmarkedOnly: false,
		MaxDistance:        10,
		SearchQuery:        "",
	}, store.Filters())
}

func TestToggleBookmark_IsSelfInverseAndPersisted(t *testing.T) {
	store, _, storage := newCollectionFixture(t)
	store.Select(store.Snapshot().Collections[0])
	before := store.Snapshot().Bookmarks

	marked, err := store.ToggleBookmark(1)
	require.NoError(t, err)
	assert.True(t, marked)
	snap := store.Snapshot()
	assert.Equal(t, []int64{1}, snap.Bookmarks)
	assert.True(t, snap.Collections[0].IsBookmarked)
	assert.True(t, snap.Selected.IsBookmarked)

	var saved []int64
	found, err := kv.GetJSON(storage, kv.KeyBookmarks, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []int64{1}, saved)

	marked, err = store.ToggleBookmark(1)
	require.NoError(t, err)
	assert.False(t, marked)
	assert.Equal(t, before, store.Snapshot().Bookmarks)
	assert.False(t, store.Snapshot().Collections[0].IsBookmarked)
}

func TestToggleBookmark_RollsBackWhenStorageFails(t *testing.T) {
	storage := &flakyStorage{Memory: kv.NewMemory()}
	store := NewCollectionStore(&fakeSource{markers: seedMarkers()}, storage, CollectionOptions{})
	require.NoError(t, store.Load(context.Background()))

	storage.failSet = true
	marked, err := store.ToggleBookmark(2)
	require.ErrorIs(t, err, apperr.ErrStorage)
	assert.False(t, marked)
	assert.False(t, store.IsBookmarked(2))
	assert.Empty(t, store.Snapshot().BookmarkedCollections())
	require.Error(t, store.Snapshot().Err)
}

func TestToggleBookmark_ConcurrentTogglesPersistFinalSet(t *testing.T) {
	store, _, storage := newCollectionFixture(t)

	var wg sync.WaitGroup
	for i := range 42 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := store.ToggleBookmark(id)
			assert.NoError(t, err)
		}(int64(i%4 + 1))
	}
	wg.Wait()

	var saved []int64
	found, err := kv.GetJSON(storage, kv.KeyBookmarks, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.ElementsMatch(t, store.Snapshot().Bookmarks, saved)
}

func TestLoadBookmarks_MarksLoadedItems(t *testing.T) {
	store, _, storage := newCollectionFixture(t)
	require.NoError(t, kv.SetJSON(storage, kv.KeyBookmarks, []int64{3, 4}))

	require.NoError(t, store.LoadBookmarks())
	assert.Equal(t, []int64{3, 4}, ids(store.Snapshot().BookmarkedCollections()))

	require.NoError(t, storage.Set(kv.KeyBookmarks, []byte("not json")))
	require.ErrorIs(t, store.LoadBookmarks(), apperr.ErrStorage)
	assert.Equal(t, []int64{3, 4}, store.Snapshot().Bookmarks)
}

func TestDerivedViews(t *testing.T) {
	store, _, _ := newCollectionFixture(t)
	require.NoError(t, store.SetUserLocation(cityHall.Lat, cityHall.Lng))
	snap := store.Snapshot()

	assert.Equal(t, []int64{1, 2, 4}, ids(snap.NearbyCollections()))
	assert.Equal(t, map[string]int{
		CategoryAll: 5, CategoryClothes: 1, CategoryShoes: 1, CategoryBags: 1, CategoryEtc: 2,
	}, snap.CategoryStats())

	// City Hall is at distance zero and ranks first; Far Bags is outside 3 km.
	assert.Equal(t, []int64{4, 1, 2}, ids(snap.RecommendedCollections()))

	stats := snap.Statistics()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.Nearby)
	assert.Zero(t, stats.Bookmarked)
}

func TestRecommendedCollections_TopFive(t *testing.T) {
	var items []Collection
	for i := 1; i <= 7; i++ {
		km := float64(i) * 0.3
		items = append(items, Collection{ID: int64(i), DistanceKm: &km})
	}
	got := CollectionSnapshot{Collections: items}.RecommendedCollections()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(got))
}

func TestFindNearest(t *testing.T) {
	store, _, _ := newCollectionFixture(t)
	_, ok := store.FindNearest()
	assert.False(t, ok, "no location yet")

	here := northOf(cityHall, 1.4)
	require.NoError(t, store.SetUserLocation(here.Lat, here.Lng))
	nearest, ok := store.FindNearest()
	require.True(t, ok)
	assert.Equal(t, int64(2), nearest.ID)

	c, ok := store.FindByID(3)
	require.True(t, ok)
	assert.Equal(t, "Far Bags", c.Address)
	_, ok = store.FindByID(42)
	assert.False(t, ok)

	empty := NewCollectionStore(&fakeSource{}, nil, CollectionOptions{})
	require.NoError(t, empty.SetUserLocation(cityHall.Lat, cityHall.Lng))
	_, ok = empty.FindNearest()
	assert.False(t, ok)
}

func TestSetUserLocation_RejectsInvalid(t *testing.T) {
	store := NewCollectionStore(&fakeSource{}, nil, CollectionOptions{})
	require.ErrorIs(t, store.SetUserLocation(120, 0), apperr.ErrValidation)
	assert.Nil(t, store.Snapshot().UserLocation)
}

func TestSaveAndRestoreState(t *testing.T) {
	store, src, storage := newCollectionFixture(t)
	_, err := store.ToggleBookmark(1)
	require.NoError(t, err)
	require.NoError(t, store.SetFilter(FilterCategory, CategoryShoes))
	require.NoError(t, store.SetUserLocation(cityHall.Lat, cityHall.Lng))
	require.NoError(t, store.SaveState())

	restored := NewCollectionStore(src, storage, CollectionOptions{})
	require.NoError(t, restored.Load(context.Background()))
	require.NoError(t, restored.RestoreState())

	snap := restored.Snapshot()
	assert.Equal(t, []int64{1}, snap.Bookmarks)
	assert.Equal(t, CategoryShoes, snap.Filters.Category)
	assert.Equal(t, SortDistance, snap.Filters.SortBy)
	require.NotNil(t, snap.UserLocation)
	assert.Equal(t, "400M", snap.Collections[0].Distance)

	require.NoError(t, storage.Set(kv.KeyCollectionState, []byte(`{"filters":{"searchQuery":"bags"}}`)))
	fresh := NewCollectionStore(src, storage, CollectionOptions{})
	require.NoError(t, fresh.RestoreState())
	f := fresh.Filters()
	assert.Equal(t, "bags", f.SearchQuery)
	assert.Equal(t, DefaultMaxDistanceKm, f.MaxDistance, "unsaved fields keep their values")
}

func TestAutoRefresh_StartReplacesAndStopHalts(t *testing.T) {
	store, src, _ := newCollectionFixture(t)
	ctx := context.Background()

	store.StartAutoRefresh(ctx, 10*time.Millisecond)
	store.StartAutoRefresh(ctx, 10*time.Millisecond)
	assert.True(t, store.AutoRefreshRunning())
	require.Eventually(t, func() bool { return src.Calls() >= 3 }, time.Second, 5*time.Millisecond)

	store.StopAutoRefresh()
	assert.False(t, store.AutoRefreshRunning())
	calls := src.Calls()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, src.Calls())

	store.StopAutoRefresh()
}

func TestAutoRefresh_ConcurrentStartsLeaveOneLoop(t *testing.T) {
	store, src, _ := newCollectionFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.StartAutoRefresh(ctx, 5*time.Millisecond)
		}()
	}
	wg.Wait()
	require.True(t, store.AutoRefreshRunning())

	store.StopAutoRefresh()
	assert.False(t, store.AutoRefreshRunning())
	calls := src.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, src.Calls(), "no replaced loop keeps refreshing")
}

func TestClearData(t *testing.T) {
	store, _, _ := newCollectionFixture(t)
	_, err := store.ToggleBookmark(1)
	require.NoError(t, err)
	store.Select(store.Snapshot().Collections[0])
	require.NoError(t, store.SetFilter(FilterCategory, CategoryBags))
	store.StartAutoRefresh(context.Background(), time.Hour)

	store.ClearData()

	snap := store.Snapshot()
	assert.Empty(t, snap.Collections)
	assert.Nil(t, snap.Selected)
	assert.Equal(t, DefaultFilters(), snap.Filters)
	assert.Equal(t, []int64{1}, snap.Bookmarks)
	assert.False(t, store.AutoRefreshRunning())
	assert.True(t, snap.ShouldShowEmptyState())
}
