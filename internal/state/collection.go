package state

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/kv"
)

// Categories understood by the filters. Anything else counts as CategoryEtc.
const (
	CategoryAll     = "all"
	CategoryClothes = "clothes"
	CategoryShoes   = "shoes"
	CategoryBags    = "bags"
	CategoryEtc     = "etc"
)

// Categories lists the filterable categories in display order.
var Categories = []string{CategoryAll, CategoryClothes, CategoryShoes, CategoryBags, CategoryEtc}

// Sort keys.
const (
	SortDistance = "distance"
	SortRating   = "rating"
	SortRecent   = "recent"
)

// Filter keys accepted by SetFilter.
const (
	FilterSortBy             = "sortBy"
	FilterCategory           = "category"
	FilterShowBookmarkedOnly = "showBookmarkedOnly"
	FilterMaxDistance        = "maxDistance"
	FilterSearchQuery        = "searchQuery"
)

// Placeholder text used when a marker lacks a field.
const (
	PlaceholderAddress = "Untitled"
	PlaceholderDetail  = "No description"
	PlaceholderCreator = "unknown"
	DistancePending    = "calculating..."
	DistanceUnknown    = "unknown"
)

const (
	DefaultNearbyRadiusKm  = 5.0
	DefaultMaxDistanceKm   = 10.0
	DefaultAutoRefresh     = 5 * time.Minute
	recommendedRadiusKm    = 3.0
	recommendedLimit       = 5
	missingDistanceKm      = 999.0
	defaultRecommendRating = 3.0
)

// Collection is the display projection of a marker.
type Collection struct {
	ID            int64      `json:"id"`
	Address       string     `json:"address"`
	DetailAddress string     `json:"detailAddress"`
	Distance      string     `json:"distance"`
	DistanceKm    *float64   `json:"distanceKm,omitempty"`
	Category      string     `json:"category"`
	Latitude      float64    `json:"latitude"`
	Longitude     float64    `json:"longitude"`
	HasPosition   bool       `json:"-"`
	IsBookmarked  bool       `json:"isBookmarked"`
	IsFavorite    bool       `json:"isFavorite"`
	Rating        *float64   `json:"rating"`
	CreatedAt     time.Time  `json:"createdAt"`
	CreatedBy     string     `json:"createdBy"`
	Marker        api.Marker `json:"-"`
}

// Point returns the collection position, or false when the source marker
// carried unusable coordinates.
func (c Collection) Point() (geo.Point, bool) {
	if !c.HasPosition {
		return geo.Point{}, false
	}
	return geo.Point{Lat: c.Latitude, Lng: c.Longitude}, true
}

func (c Collection) distanceOr(fallback float64) float64 {
	if c.DistanceKm == nil {
		return fallback
	}
	return *c.DistanceKm
}

// Project converts a marker into a Collection. location may be nil, in which
// case the distance is left pending.
func Project(m api.Marker, location *geo.Point, bookmarked bool) Collection {
	c := Collection{
		ID:            m.ID,
		Address:       m.Title,
		DetailAddress: m.Description,
		Category:      categoryOf(m),
		IsBookmarked:  bookmarked,
		CreatedAt:     m.ParsedCreatedAt(),
		CreatedBy:     m.CreatedByEmail,
		Marker:        m,
	}
	if strings.TrimSpace(c.Address) == "" {
		c.Address = PlaceholderAddress
	}
	if strings.TrimSpace(c.DetailAddress) == "" {
		c.DetailAddress = PlaceholderDetail
	}
	if c.CreatedBy == "" {
		c.CreatedBy = PlaceholderCreator
	}
	if p, ok := m.Point(); ok {
		c.Latitude, c.Longitude, c.HasPosition = p.Lat, p.Lng, true
	}
	applyDistance(&c, location)
	return c
}

func applyDistance(c *Collection, location *geo.Point) {
	c.DistanceKm = nil
	switch p, ok := c.Point(); {
	case location == nil:
		c.Distance = DistancePending
	case !ok:
		c.Distance = DistanceUnknown
	default:
		km := geo.Distance(*location, p)
		c.DistanceKm = &km
		c.Distance = geo.FormatDistance(km)
	}
}

func categoryOf(m api.Marker) string {
	if m.Category == "" {
		return CategoryEtc
	}
	return m.Category
}

// Filters configures FilteredCollections.
type Filters struct {
	SortBy             string  `json:"sortBy"`
	Category           string  `json:"category"`
	ShowBookmarkedOnly bool    `json:"showBookmarkedOnly"`
	MaxDistance        float64 `json:"maxDistance"`
	SearchQuery        string  `json:"searchQuery"`
}

// DefaultFilters is the value ResetFilters restores.
func DefaultFilters() Filters {
	return Filters{
		SortBy:      SortDistance,
		Category:    CategoryAll,
		MaxDistance: DefaultMaxDistanceKm,
	}
}

// Statistics summarises the collection store.
type Statistics struct {
	Total       int
	Bookmarked  int
	Nearby      int
	Categories  map[string]int
	LastRefresh time.Time
}

// CollectionSnapshot is a copy of the collection store. Derived views are
// computed from it on every call.
type CollectionSnapshot struct {
	Collections    []Collection
	Selected       *Collection
	UserLocation   *geo.Point
	Bookmarks      []int64
	Filters        Filters
	NearbyRadiusKm float64
	Loading        bool
	Refreshing     bool
	Err            error
	LastRefresh    time.Time
}

// FilteredCollections applies search, bookmark, category and distance
// filters in that order and sorts the result. Items without a known distance
// pass the distance filter.
func (s CollectionSnapshot) FilteredCollections() []Collection {
	f := s.Filters
	query := strings.ToLower(strings.TrimSpace(f.SearchQuery))

	out := make([]Collection, 0, len(s.Collections))
	for _, c := range s.Collections {
		if query != "" &&
			!strings.Contains(strings.ToLower(c.Address), query) &&
			!strings.Contains(strings.ToLower(c.DetailAddress), query) {
			continue
		}
		if f.ShowBookmarkedOnly && !c.IsBookmarked {
			continue
		}
		if f.Category != "" && f.Category != CategoryAll && c.Category != f.Category {
			continue
		}
		if f.MaxDistance > 0 && c.DistanceKm != nil && *c.DistanceKm > f.MaxDistance {
			continue
		}
		out = append(out, c)
	}

	switch f.SortBy {
	case SortDistance:
		slices.SortStableFunc(out, func(a, b Collection) int {
			return cmp.Compare(a.distanceOr(missingDistanceKm), b.distanceOr(missingDistanceKm))
		})
	case SortRating:
		slices.SortStableFunc(out, func(a, b Collection) int {
			return cmp.Compare(ratingOr(b, 0), ratingOr(a, 0))
		})
	case SortRecent:
		slices.SortStableFunc(out, func(a, b Collection) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}
	return out
}

// NearbyCollections returns items within NearbyRadiusKm regardless of the
// distance filter.
func (s CollectionSnapshot) NearbyCollections() []Collection {
	var out []Collection
	for _, c := range s.Collections {
		if c.distanceOr(missingDistanceKm) <= s.NearbyRadiusKm {
			out = append(out, c)
		}
	}
	return out
}

// CategoryStats counts items per category. Unknown categories count as etc.
func (s CollectionSnapshot) CategoryStats() map[string]int {
	stats := map[string]int{
		CategoryAll:     len(s.Collections),
		CategoryClothes: 0,
		CategoryShoes:   0,
		CategoryBags:    0,
		CategoryEtc:     0,
	}
	for _, c := range s.Collections {
		switch c.Category {
		case CategoryClothes, CategoryShoes, CategoryBags:
			stats[c.Category]++
		default:
			stats[CategoryEtc]++
		}
	}
	return stats
}

// RecommendedCollections ranks items within 3 km by rating over distance and
// returns the top five.
func (s CollectionSnapshot) RecommendedCollections() []Collection {
	var out []Collection
	for _, c := range s.Collections {
		if c.distanceOr(missingDistanceKm) <= recommendedRadiusKm {
			out = append(out, c)
		}
	}
	score := func(c Collection) float64 {
		return ratingOr(c, defaultRecommendRating) / c.distanceOr(1)
	}
	slices.SortStableFunc(out, func(a, b Collection) int {
		return cmp.Compare(score(b), score(a))
	})
	if len(out) > recommendedLimit {
		out = out[:recommendedLimit]
	}
	return out
}

// BookmarkedCollections returns the bookmarked items.
func (s CollectionSnapshot) BookmarkedCollections() []Collection {
	var out []Collection
	for _, c := range s.Collections {
		if c.IsBookmarked {
			out = append(out, c)
		}
	}
	return out
}

// Statistics returns counts for the status bar.
func (s CollectionSnapshot) Statistics() Statistics {
	return Statistics{
		Total:       len(s.Collections),
		Bookmarked:  len(s.BookmarkedCollections()),
		Nearby:      len(s.NearbyCollections()),
		Categories:  s.CategoryStats(),
		LastRefresh: s.LastRefresh,
	}
}

func (s CollectionSnapshot) ShouldShowErrorState() bool {
	return !s.Loading && s.Err != nil && len(s.Collections) == 0
}

func (s CollectionSnapshot) ShouldShowCollections() bool {
	return !s.Loading && s.Err == nil && len(s.Collections) > 0
}

func (s CollectionSnapshot) ShouldShowEmptyState() bool {
	return !s.Loading && s.Err == nil && len(s.Collections) == 0
}

func ratingOr(c Collection, fallback float64) float64 {
	if c.Rating == nil || *c.Rating == 0 {
		return fallback
	}
	return *c.Rating
}

// CollectionOptions tunes a CollectionStore.
type CollectionOptions struct {
	NearbyRadiusKm float64
	Now            func() time.Time
	Logger         *slog.Logger
}

// CollectionStore owns the collection list, user location, bookmarks and
// filters.
type CollectionStore struct {
	mu          sync.RWMutex
	items       []Collection
	selected    *Collection
	location    *geo.Point
	bookmarks   map[int64]struct{}
	filters     Filters
	loading     bool
	refreshing  bool
	err         error
	lastRefresh time.Time

	source       api.MarkerSource
	storage      kv.Storage
	loads        singleflight.Group
	nearbyRadius float64
	now          func() time.Time
	logger       *slog.Logger

	// saveMu orders bookmark persistence with the in-memory flips.
	saveMu sync.Mutex

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

// NewCollectionStore returns an empty store. Call LoadBookmarks and
// RestoreState to pick up persisted state.
func NewCollectionStore(source api.MarkerSource, storage kv.Storage, opts CollectionOptions) *CollectionStore {
	s := &CollectionStore{
		bookmarks:    make(map[int64]struct{}),
		filters:      DefaultFilters(),
		source:       source,
		storage:      storage,
		nearbyRadius: opts.NearbyRadiusKm,
		now:          opts.Now,
		logger:       opts.Logger,
	}
	if s.nearbyRadius <= 0 {
		s.nearbyRadius = DefaultNearbyRadiusKm
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *CollectionStore) Snapshot() CollectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := CollectionSnapshot{
		Collections:    slices.Clone(s.items),
		Bookmarks:      s.bookmarkIDsLocked(),
		Filters:        s.filters,
		NearbyRadiusKm: s.nearbyRadius,
		Loading:        s.loading,
		Refreshing:     s.refreshing,
		LastRefresh:    s.lastRefresh,
	}
	if s.selected != nil {
		c := *s.selected
		snap.Selected = &c
	}
	if s.location != nil {
		p := *s.location
		snap.UserLocation = &p
	}
	if s.err != nil {
		snap.Err = fmt.Errorf("%w", s.err)
	}
	return snap
}

// Load fetches every marker and rebuilds the collection list. Concurrent
// calls share one request, and cancelling one caller does not fail the
// others. When ctx is cancelled before the response arrives the result is
// discarded.
func (s *CollectionStore) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	markers, shared, err := fetchMarkers(ctx, &s.loads, s.source)
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.logger.Debug("discarding collection load", slog.String("reason", ctxErr.Error()))
		return ctxErr
	}
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("load collections failed", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Collection, 0, len(markers))
	for _, m := range markers {
		_, marked := s.bookmarks[m.ID]
		items = append(items, Project(m, s.location, marked))
	}
	s.items = items
	s.loading = false
	s.lastRefresh = s.now()
	s.logger.Info("collections loaded", slog.Int("count", len(items)), slog.Bool("shared", shared))
	return nil
}

// Refresh is Load with the refreshing flag raised for its duration.
func (s *CollectionStore) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.refreshing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()
	return s.Load(ctx)
}

// Project converts m using the store's current location and bookmarks.
func (s *CollectionStore) Project(m api.Marker) Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, marked := s.bookmarks[m.ID]
	return Project(m, s.location, marked)
}

// Select marks c as the selected collection.
func (s *CollectionStore) Select(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &c
}

// ClearSelection drops the selection.
func (s *CollectionStore) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

// IsBookmarked reports whether id is bookmarked.
func (s *CollectionStore) IsBookmarked(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bookmarks[id]
	return ok
}

// ToggleBookmark flips the bookmark for id, updates matching items and
// persists the set. If persisting fails the change is rolled back and a
// storage error is returned. It reports the new bookmark state.
func (s *CollectionStore) ToggleBookmark(id int64) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	marked := s.flipLocked(id)
	ids := s.bookmarkIDsLocked()
	s.mu.Unlock()

	if err := s.saveBookmarks(ids); err != nil {
		s.mu.Lock()
		s.flipLocked(id)
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("bookmark rolled back", slog.Int64("id", id), slog.String("error", err.Error()))
		return !marked, err
	}
	return marked, nil
}

func (s *CollectionStore) flipLocked(id int64) bool {
	_, marked := s.bookmarks[id]
	if marked {
		delete(s.bookmarks, id)
	} else {
		s.bookmarks[id] = struct{}{}
	}
	marked = !marked
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsBookmarked = marked
		}
	}
	if s.selected != nil && s.selected.ID == id {
		s.selected.IsBookmarked = marked
	}
	return marked
}

func (s *CollectionStore) bookmarkIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.bookmarks))
	for id := range s.bookmarks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *CollectionStore) saveBookmarks(ids []int64) error {
	if s.storage == nil {
		return nil
	}
	if err := kv.SetJSON(s.storage, kv.KeyBookmarks, ids); err != nil {
		return apperr.Storage("save bookmarks", err)
	}
	return nil
}

// LoadBookmarks replaces the bookmark set with the persisted one. A missing
// entry is not an error; an unreadable one is logged and returned while the
// in-memory set is kept.
func (s *CollectionStore) LoadBookmarks() error {
	if s.storage == nil {
		return nil
	}
	var ids []int64
	found, err := kv.GetJSON(s.storage, kv.KeyBookmarks, &ids)
	if err != nil {
		s.logger.Warn("load bookmarks failed", slog.String("error", err.Error()))
		return apperr.Storage("load bookmarks", err)
	}
	if !found {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setBookmarksLocked(ids)
	return nil
}

func (s *CollectionStore) setBookmarksLocked(ids []int64) {
	s.bookmarks = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.bookmarks[id] = struct{}{}
	}
	for i := range s.items {
		_, s.items[i].IsBookmarked = s.bookmarks[s.items[i].ID]
	}
	if s.selected != nil {
		_, s.selected.IsBookmarked = s.bookmarks[s.selected.ID]
	}
}

// Filters returns the current filter configuration.
func (s *CollectionStore) Filters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// SetFilter updates one filter field. Unknown keys and mistyped values are
// validation errors and leave the filters unchanged.
func (s *CollectionStore) SetFilter(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.filters
	switch key {
	case FilterSortBy:
		v, ok := value.(string)
		if !ok || (v != SortDistance && v != SortRating && v != SortRecent) {
			return filterError(key, value)
		}
		f.SortBy = v
	case FilterCategory:
		v, ok := value.(string)
		if !ok || !slices.Contains(Categories, v) {
			return filterError(key, value)
		}
		f.Category = v
	case FilterShowBookmarkedOnly:
		v, ok := value.(bool)
		if !ok {
			return filterError(key, value)
		}
		f.ShowBookmarkedOnly = v
	case FilterMaxDistance:
		var v float64
		switch n := value.(type) {
		case float64:
			v = n
		case int:
			v = float64(n)
		default:
			return filterError(key, value)
		}
		if v < 0 || math.IsNaN(v) {
			return filterError(key, value)
		}
		f.MaxDistance = v
	case FilterSearchQuery:
		v, ok := value.(string)
		if !ok {
			return filterError(key, value)
		}
		f.SearchQuery = v
	default:
		return apperr.Validation("unknown filter "+key, nil)
	}
	s.filters = f
	return nil
}

func filterError(key string, value any) error {
	return apperr.Validation(fmt.Sprintf("invalid value %v for filter %s", value, key), map[string]string{key: fmt.Sprint(value)})
}

// SearchCollections sets the search query.
func (s *CollectionStore) SearchCollections(query string) {
	_ = s.SetFilter(FilterSearchQuery, query)
}

// ResetFilters restores DefaultFilters.
func (s *CollectionStore) ResetFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = DefaultFilters()
}

// SetUserLocation records the user's position and recomputes every distance.
func (s *CollectionStore) SetUserLocation(lat, lng float64) error {
	p := geo.Point{Lat: lat, Lng: lng}
	if !geo.Valid(p) {
		return apperr.Validation(fmt.Sprintf("invalid location %v,%v", lat, lng), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &p
	s.recomputeLocked()
	return nil
}

func (s *CollectionStore) recomputeLocked() {
	for i := range s.items {
		applyDistance(&s.items[i], s.location)
	}
	if s.selected != nil {
		applyDistance(s.selected, s.location)
	}
}

// FindByID returns the collection with id.
func (s *CollectionStore) FindByID(id int64) (Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.items {
		if c.ID == id {
			return c, true
		}
	}
	return Collection{}, false
}

// FindNearest returns the collection closest to the user. It reports false
// without a user location or without positioned items.
func (s *CollectionStore) FindNearest() (Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.location == nil {
		return Collection{}, false
	}
	var (
		best    Collection
		found   bool
		nearest = math.Inf(1)
	)
	for _, c := range s.items {
		p, ok := c.Point()
		if !ok {
			continue
		}
		if d := geo.Distance(*s.location, p); d < nearest {
			nearest, best, found = d, c, true
		}
	}
	return best, found
}

// StartAutoRefresh refreshes the list every interval until StopAutoRefresh
// or ctx ends. A running auto-refresh is replaced and waited for, so at
// most one loop survives concurrent starts.
func (s *CollectionStore) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoRefresh
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.autoMu.Lock()
	prevCancel, prevDone := s.autoCancel, s.autoDone
	s.autoCancel, s.autoDone = cancel, done
	s.autoMu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("auto refresh failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}
	s.logger.Debug("auto refresh started", slog.Duration("interval", interval))
}

// StopAutoRefresh stops the auto-refresh loop and waits for it to exit. It
// is a no-op when none is running.
func (s *CollectionStore) StopAutoRefresh() {
	s.autoMu.Lock()
	cancel, done := s.autoCancel, s.autoDone
	s.autoCancel, s.autoDone = nil, nil
	s.autoMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// AutoRefreshRunning reports whether an auto-refresh loop is active.
func (s *CollectionStore) AutoRefreshRunning() bool {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	return s.autoCancel != nil
}

// ClearData empties the list, selection, error and filters and stops
// auto-refresh. Bookmarks and location survive.
func (s *CollectionStore) ClearData() {
	s.StopAutoRefresh()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.selected = nil
	s.loading = false
	s.refreshing = false
	s.err = nil
	s.filters = DefaultFilters()
}

type savedCollectionState struct {
	BookmarkedIDs []int64    `json:"bookmarkedIds"`
	Filters       Filters    `json:"filters"`
	UserLocation  *geo.Point `json:"userLocation"`
}

// SaveState persists bookmarks, filters and location.
func (s *CollectionStore) SaveState() error {
	if s.storage == nil {
		return nil
	}
	s.mu.RLock()
	saved := savedCollectionState{
		BookmarkedIDs: s.bookmarkIDsLocked(),
		Filters:       s.filters,
		UserLocation:  s.location,
	}
	s.mu.RUnlock()
	if err := kv.SetJSON(s.storage, kv.KeyCollectionState, saved); err != nil {
		s.logger.Warn("save collection state failed", slog.String("error", err.Error()))
		return apperr.Storage("save collection state", err)
	}
	return nil
}

// RestoreState loads what SaveState wrote. Saved filters are merged over the
// current ones; a missing entry changes nothing.
func (s *CollectionStore) RestoreState() error {
	if s.storage == nil {
		return nil
	}
	saved := savedCollectionState{Filters: s.Filters()}
	found, err := kv.GetJSON(s.storage, kv.KeyCollectionState, &saved)
	if err != nil {
		s.logger.Warn("restore collection state failed", slog.String("error", err.Error()))
		return apperr.Storage("restore collection state", err)
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if saved.BookmarkedIDs != nil {
		s.setBookmarksLocked(saved.BookmarkedIDs)
	}
	s.filters = saved.Filters
	if saved.UserLocation != nil && geo.Valid(*saved.UserLocation) {
		p := *saved.UserLocation
		s.location = &p
		s.recomputeLocked()
	}
	return nil
}
