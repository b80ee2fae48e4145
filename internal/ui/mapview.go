package ui

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/state"
)

// MapView is a character-grid map. It implements state.Widget: the map store
// adds and removes pins, the model renders them and fires clicks for the pin
// under the cursor.
type MapView struct {
	mu     sync.Mutex
	center geo.Point
	zoom   int
	pins   []*pin
	cursor int64
}

var _ state.Widget = (*MapView)(nil)

type pin struct {
	view    *MapView
	marker  api.Marker
	at      geo.Point
	onClick func()
	visible bool
}

// Pin is a read-only view of one placed marker.
type Pin struct {
	Marker api.Marker
	At     geo.Point
}

// GridPin is a pin projected onto a width×height grid.
type GridPin struct {
	Pin
	Col, Row int
}

// NewMapView returns an empty map centered on the default location.
func NewMapView() *MapView {
	return &MapView{center: state.DefaultCenter, zoom: state.DefaultZoom}
}

// AddMarker places a pin. The click callback runs only from Click.
func (v *MapView) AddMarker(m api.Marker, at geo.Point, onClick func()) (state.Handle, error) {
	if !geo.Valid(at) {
		return nil, fmt.Errorf("marker %d: position %.5f,%.5f out of range", m.ID, at.Lat, at.Lng)
	}
	p := &pin{view: v, marker: m, at: at, onClick: onClick, visible: true}
	v.mu.Lock()
	v.pins = append(v.pins, p)
	v.mu.Unlock()
	return p, nil
}

// SetCenter moves the viewport.
func (v *MapView) SetCenter(p geo.Point) {
	v.mu.Lock()
	v.center = p
	v.mu.Unlock()
}

// SetZoom sets the zoom level, clamped to the supported range.
func (v *MapView) SetZoom(level int) {
	v.mu.Lock()
	v.zoom = min(max(level, 1), 20)
	v.mu.Unlock()
}

// Remove takes the pin off the map. Removing twice is harmless.
func (p *pin) Remove() {
	v := p.view
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pins = slices.DeleteFunc(v.pins, func(q *pin) bool { return q == p })
	if v.cursor == p.marker.ID {
		v.cursor = 0
	}
}

// SetVisible shows or hides the pin.
func (p *pin) SetVisible(visible bool) {
	p.view.mu.Lock()
	p.visible = visible
	p.view.mu.Unlock()
}

// Center returns the viewport center and zoom.
func (v *MapView) Center() (geo.Point, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.center, v.zoom
}

// Pins returns the visible pins ordered west to east, then north to south.
func (v *MapView) Pins() []Pin {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visibleLocked()
}

func (v *MapView) visibleLocked() []Pin {
	out := make([]Pin, 0, len(v.pins))
	for _, p := range v.pins {
		if p.visible {
			out = append(out, Pin{Marker: p.marker, At: p.at})
		}
	}
	slices.SortFunc(out, func(a, b Pin) int {
		if a.At.Lng != b.At.Lng {
			if a.At.Lng < b.At.Lng {
				return -1
			}
			return 1
		}
		if a.At.Lat > b.At.Lat {
			return -1
		}
		if a.At.Lat < b.At.Lat {
			return 1
		}
		return 0
	})
	return out
}

// Layout projects the visible pins onto a width×height grid centered on the
// viewport. Pins outside the grid are left out.
func (v *MapView) Layout(width, height int) []GridPin {
	v.mu.Lock()
	center, zoom := v.center, v.zoom
	pins := v.visibleLocked()
	v.mu.Unlock()

	var out []GridPin
	for _, p := range pins {
		col, row, ok := project(p.At, center, zoom, width, height)
		if !ok {
			continue
		}
		out = append(out, GridPin{Pin: p, Col: col, Row: row})
	}
	return out
}

// Cursor returns the marker under the cursor, if any.
func (v *MapView) Cursor() (int64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor, v.cursor != 0
}

// SetCursor puts the cursor on marker id.
func (v *MapView) SetCursor(id int64) {
	v.mu.Lock()
	v.cursor = id
	v.mu.Unlock()
}

// MoveCursor steps the cursor through the visible pins and returns the pin
// it lands on. With no visible pins it reports false.
func (v *MapView) MoveCursor(step int) (Pin, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pins := v.visibleLocked()
	if len(pins) == 0 {
		v.cursor = 0
		return Pin{}, false
	}
	idx := slices.IndexFunc(pins, func(p Pin) bool { return p.Marker.ID == v.cursor })
	switch {
	case idx < 0 && step < 0:
		idx = len(pins) - 1
	case idx < 0:
		idx = 0
	default:
		idx = ((idx+step)%len(pins) + len(pins)) % len(pins)
	}
	v.cursor = pins[idx].Marker.ID
	return pins[idx], true
}

// Click fires the callback of marker id. The callback runs without the view
// lock held, so it may call back into the map store.
func (v *MapView) Click(id int64) bool {
	v.mu.Lock()
	var fn func()
	for _, p := range v.pins {
		if p.marker.ID == id && p.visible {
			fn = p.onClick
			break
		}
	}
	v.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Offset returns the point dx columns east and dy rows south of the center.
func (v *MapView) Offset(dx, dy int) geo.Point {
	v.mu.Lock()
	center, zoom := v.center, v.zoom
	v.mu.Unlock()
	lngStep, latStep := cellSpan(center, zoom)
	p := geo.Point{
		Lat: center.Lat - float64(dy)*latStep,
		Lng: center.Lng + float64(dx)*lngStep,
	}
	p.Lat = math.Max(-85, math.Min(85, p.Lat))
	if p.Lng > 180 {
		p.Lng -= 360
	} else if p.Lng < -180 {
		p.Lng += 360
	}
	return p
}

// cellSpan returns the degrees of longitude and latitude covered by one cell.
// A 256px tile spans 360/2^zoom degrees of longitude; latitude is scaled by
// the cell aspect and the local parallel length.
func cellSpan(center geo.Point, zoom int) (lngStep, latStep float64) {
	lngStep = 360 / math.Exp2(float64(zoom)) / 256 * CellPixelWidth
	latStep = lngStep * CellPixelHeight / CellPixelWidth * math.Cos(center.Lat*math.Pi/180)
	return lngStep, latStep
}

func project(p, center geo.Point, zoom, width, height int) (col, row int, ok bool) {
	if width <= 0 || height <= 0 {
		return 0, 0, false
	}
	lngStep, latStep := cellSpan(center, zoom)
	col = width/2 + int(math.Round((p.Lng-center.Lng)/lngStep))
	row = height/2 - int(math.Round((p.Lat-center.Lat)/latStep))
	if col < 0 || col >= width || row < 0 || row >= height {
		return 0, 0, false
	}
	return col, row, true
}
