// Package state holds the three client-side stores of DropIt: collections,
// map and UI.
//
// # Overview
//
// Each store is a mutex-guarded struct that hands out value snapshots. The
// TUI renders from snapshots; commands, timers and the map widget mutate the
// stores through methods. Nothing in this package talks HTTP directly: loads
// go through api.MarkerSource and persistence through kv.Storage.
//
// # Architecture
//
//	              api.MarkerSource
//	             ┌───────┴────────┐
//	             ↓                ↓
//	┌──────────────────┐   ┌──────────────┐   Widget.AddMarker
//	│ CollectionStore  │←──│   MapStore   │──────────────────→ map widget
//	│ list, filters,   │   │ placements,  │←────────────────── onClick
//	│ bookmarks, loc.  │   │ selection    │
//	└──────────────────┘   └──────┬───────┘
//	                              ↓ OpenCollectionInfoPanel
//	                       ┌──────────────┐
//	                       │   UIStore    │
//	                       └──────────────┘
//
// The map store never looks the other stores up. It receives a
// CollectionSelector and a PanelOpener at construction, which the
// composition root satisfies with the real stores and tests satisfy with
// fakes.
//
// # Collection Store
//
// Load replaces the list wholesale from the marker source. Every marker is
// projected into a Collection: placeholders fill empty title and description,
// an empty category becomes "etc", and the distance to the user location is
// kept both as kilometres (DistanceKm) and as display text ("400M", "1.5KM").
// Without a location the text is "calculating..."; markers with unusable
// coordinates read "unknown".
//
// Derived views live on CollectionSnapshot and are computed on each call:
//
//   - FilteredCollections: search, bookmarks, category, max distance, sort
//   - NearbyCollections: distance within NearbyRadiusKm
//   - CategoryStats: per-category counts, unknown categories in "etc"
//   - RecommendedCollections: within 3 km, rating/distance, top five
//
// Items with no known distance sort last under SortDistance and are not
// dropped by the max-distance filter.
//
// Bookmarks are toggled in memory first and then written to storage. If the
// write fails the toggle is undone and the error returned.
//
// # Map Store
//
// The map store is gated on readiness: until SetMapInstance and
// SetMapReady(true) have both happened, LoadMarkers and AddMarker log and
// return without placing anything. Skipped loads are not queued; the caller
// loads again once the widget reports ready.
//
// A load clears every placement (removing each handle from the widget) and
// re-adds the fetched markers one by one. Markers with invalid coordinates
// are logged and skipped; the rest of the batch still lands.
//
// A click selects the marker, pushes its projection into the collection
// store and only then opens the UI info panel.
//
// # Concurrency
//
// Stores are safe for concurrent use. Network calls run outside the locks.
// Concurrent loads of the same store share one request through
// singleflight, and a load whose context is cancelled before completion
// leaves the store as it was. The map store holds its lock while calling the
// widget, so widget implementations must not call back into the store
// synchronously.
//
// # UI Store
//
// Pure presentation state. Opening the profile or settings closes every
// major panel through CloseAllPanels; the collection info panel opens and
// closes on its own without touching the others. Notifications are inserted
// at the head and expire after their duration through time.AfterFunc.
package state
