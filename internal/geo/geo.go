// Package geo holds the great-circle math DropIt uses for distances and
// bounding boxes.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Bounds is an axis-aligned latitude/longitude box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Distance returns the haversine distance between a and b in kilometres.
func Distance(a, b Point) float64 {
	dLat := deg2rad(b.Lat - a.Lat)
	dLng := deg2rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(a.Lat))*math.Cos(deg2rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders km as "400M" below one kilometre and "1.5KM" otherwise.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dM", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fKM", km)
}

// Around returns the box spanning radiusKm in every direction from center.
func Around(center Point, radiusKm float64) Bounds {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	cos := math.Cos(deg2rad(center.Lat))
	dLng := 180.0
	if cos > 1e-9 {
		dLng = math.Min(180, dLat/cos)
	}
	return Bounds{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
		MinLng: center.Lng - dLng,
		MaxLng: center.Lng + dLng,
	}
}

// Valid reports whether p is a finite coordinate within WGS84 ranges.
func Valid(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180
}
