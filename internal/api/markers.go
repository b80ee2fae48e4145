package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dropit-app/dropit/internal/geo"
)

// DefaultNearbyRadiusKm is used by MarkersNearby when radius is not positive.
const DefaultNearbyRadiusKm = 1.0

// MarkerSource is the read side the stores depend on.
type MarkerSource interface {
	ListMarkers(ctx context.Context) ([]Marker, error)
}

var _ MarkerSource = (*Client)(nil)

// ListMarkers retrieves every marker.
func (c *Client) ListMarkers(ctx context.Context) ([]Marker, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var markers []Marker
	if err := c.do(ctx, http.MethodGet, "/markers", nil, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// GetMarker retrieves a single marker.
func (c *Client) GetMarker(ctx context.Context, id int64) (*Marker, error) {
	var m Marker
	if err := c.do(ctx, http.MethodGet, markerPath(id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMarker creates a marker owned by the signed-in user.
func (c *Client) CreateMarker(ctx context.Context, in MarkerInput) (*Marker, error) {
	if err := c.validate.Validate(in); err != nil {
		return nil, err
	}
	var m Marker
	if err := c.doAuth(ctx, http.MethodPost, "/markers", in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMarker replaces a marker owned by the signed-in user.
func (c *Client) UpdateMarker(ctx context.Context, id int64, in MarkerInput) (*Marker, error) {
	if err := c.validate.Validate(in); err != nil {
		return nil, err
	}
	var m Marker
	if err := c.doAuth(ctx, http.MethodPut, markerPath(id), in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMarker removes a marker owned by the signed-in user.
func (c *Client) DeleteMarker(ctx context.Context, id int64) error {
	return c.doAuth(ctx, http.MethodDelete, markerPath(id), nil, nil)
}

// MyMarkers lists the signed-in user's markers.
func (c *Client) MyMarkers(ctx context.Context) ([]Marker, error) {
	var markers []Marker
	if err := c.doAuth(ctx, http.MethodGet, "/markers/my", nil, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// MyMarkersPaged pages through the signed-in user's markers.
func (c *Client) MyMarkersPaged(ctx context.Context, q PageQuery) (Page[Marker], error) {
	rel := &url.URL{Path: "/markers/my/paged", RawQuery: q.values().Encode()}
	var page Page[Marker]
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &page, true); err != nil {
		return Page[Marker]{}, err
	}
	return page, nil
}

// MarkersPaged pages through every marker.
func (c *Client) MarkersPaged(ctx context.Context, q PageQuery) (Page[Marker], error) {
	rel := &url.URL{Path: "/markers/paged", RawQuery: q.values().Encode()}
	var page Page[Marker]
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &page, false); err != nil {
		return Page[Marker]{}, err
	}
	return page, nil
}

// MarkersByCategory lists markers in one category.
func (c *Client) MarkersByCategory(ctx context.Context, category string) ([]Marker, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("category required")
	}
	var markers []Marker
	if err := c.do(ctx, http.MethodGet, "/markers/category/"+url.PathEscape(category), nil, &markers); err != nil {
		return nil, err
	}
	return markers, nil
}

// SearchMarkers runs a keyword search over titles and descriptions.
func (c *Client) SearchMarkers(ctx context.Context, keyword string) ([]Marker, error) {
	values := url.Values{}
	values.Set("keyword", strings.TrimSpace(keyword))
	rel := &url.URL{Path: "/markers/search", RawQuery: values.Encode()}
	var markers []Marker
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &markers, false); err != nil {
		return nil, err
	}
	return markers, nil
}

// MarkersInArea lists markers inside a bounding box.
func (c *Client) MarkersInArea(ctx context.Context, b geo.Bounds) ([]Marker, error) {
	values := url.Values{}
	values.Set("minLat", formatFloat(b.MinLat))
	values.Set("maxLat", formatFloat(b.MaxLat))
	values.Set("minLng", formatFloat(b.MinLng))
	values.Set("maxLng", formatFloat(b.MaxLng))
	rel := &url.URL{Path: "/markers/area", RawQuery: values.Encode()}
	var markers []Marker
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &markers, false); err != nil {
		return nil, err
	}
	return markers, nil
}

// MarkersNearby lists markers within radiusKm of center.
func (c *Client) MarkersNearby(ctx context.Context, center geo.Point, radiusKm float64) ([]Marker, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	values := url.Values{}
	values.Set("lat", formatFloat(center.Lat))
	values.Set("lng", formatFloat(center.Lng))
	values.Set("radius", formatFloat(radiusKm))
	rel := &url.URL{Path: "/markers/nearby", RawQuery: values.Encode()}
	var markers []Marker
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &markers, false); err != nil {
		return nil, err
	}
	return markers, nil
}

func (q PageQuery) values() url.Values {
	size := q.Size
	if size <= 0 {
		size = 10
	}
	page := q.Page
	if page < 0 {
		page = 0
	}
	sortBy := strings.TrimSpace(q.SortBy)
	if sortBy == "" {
		sortBy = "createdAt"
	}
	sortDir := strings.ToLower(strings.TrimSpace(q.SortDir))
	if sortDir != "asc" {
		sortDir = "desc"
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("size", strconv.Itoa(size))
	values.Set("sortBy", sortBy)
	values.Set("sortDir", sortDir)
	return values
}

func markerPath(id int64) string {
	return "/markers/" + strconv.FormatInt(id, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
