package mockapi

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropit-app/dropit/internal/geo"
)

type marker struct {
	ID          int64
	Lat, Lng    float64
	Title       string
	Description string
	Category    string
	OwnerEmail  string
	OwnerName   string
	CreatedAt   string
	UpdatedAt   string
}

// markerResponse mirrors the backend's MarkerResponse.
type markerResponse struct {
	ID             int64   `json:"id"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	CreatedByEmail string  `json:"createdByEmail"`
	CreatedByName  string  `json:"createdByName"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

type markerRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
}

type pagedResponse struct {
	Content       []markerResponse `json:"content"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int              `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	First         bool             `json:"first"`
	Last          bool             `json:"last"`
}

// MarkerSeed describes a marker added directly through AddMarker.
type MarkerSeed struct {
	Lat, Lng    float64
	Title       string
	Description string
	Category    string
	OwnerEmail  string
}

// AddMarker inserts a marker without going through the API and returns its id.
func (s *Server) AddMarker(seed MarkerSeed) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMarkerID++
	ts := s.now().Format(timestampLayout)
	m := &marker{
		ID:          s.nextMarkerID,
		Lat:         seed.Lat,
		Lng:         seed.Lng,
		Title:       seed.Title,
		Description: seed.Description,
		Category:    cmp.Or(seed.Category, "etc"),
		OwnerEmail:  seed.OwnerEmail,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if u, ok := s.users[seed.OwnerEmail]; ok {
		m.OwnerName = u.Name
	}
	s.markers[m.ID] = m
	return m.ID
}

// MarkerCount returns the number of stored markers.
func (s *Server) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

func (m *marker) response() markerResponse {
	return markerResponse{
		ID:             m.ID,
		Latitude:       m.Lat,
		Longitude:      m.Lng,
		Title:          m.Title,
		Description:    m.Description,
		Category:       m.Category,
		CreatedByEmail: m.OwnerEmail,
		CreatedByName:  m.OwnerName,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// selectMarkers returns matching markers newest first.
func (s *Server) selectMarkers(keep func(*marker) bool) []markerResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]markerResponse, 0, len(s.markers))
	for _, m := range s.markers {
		if keep == nil || keep(m) {
			out = append(out, m.response())
		}
	}
	slices.SortFunc(out, func(a, b markerResponse) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (s *Server) handleMarkersTest(w http.ResponseWriter, _ *http.Request) {
	s.envelope(w, http.StatusOK, "Marker API is working!", "connection ok")
}

func (s *Server) handleListMarkers(w http.ResponseWriter, _ *http.Request) {
	s.envelope(w, http.StatusOK, s.selectMarkers(nil), "markers loaded")
}

func (s *Server) handleGetMarker(w http.ResponseWriter, r *http.Request) {
	id, ok := markerID(r)
	if !ok {
		s.envelopeError(w, http.StatusNotFound, "marker not found", "MARKER_NOT_FOUND")
		return
	}
	s.mu.Lock()
	m, found := s.markers[id]
	var resp markerResponse
	if found {
		resp = m.response()
	}
	s.mu.Unlock()
	if !found {
		s.envelopeError(w, http.StatusNotFound, "marker not found", "MARKER_NOT_FOUND")
		return
	}
	s.envelope(w, http.StatusOK, resp, "marker loaded")
}

func (s *Server) handleCreateMarker(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r.Context())
	var req markerRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.envelopeError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if msg, ok := validateMarker(req); !ok {
		s.envelopeError(w, http.StatusBadRequest, msg, "VALIDATION_FAILED")
		return
	}
	id := s.AddMarker(MarkerSeed{
		Lat:         *req.Latitude,
		Lng:         *req.Longitude,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		OwnerEmail:  email,
	})
	s.mu.Lock()
	resp := s.markers[id].response()
	s.mu.Unlock()
	s.envelope(w, http.StatusCreated, resp, "marker created")
}

func (s *Server) handleUpdateMarker(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r.Context())
	id, ok := markerID(r)
	if !ok {
		s.envelopeError(w, http.StatusNotFound, "marker not found", "MARKER_NOT_FOUND")
		return
	}
	var req markerRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.envelopeError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if msg, ok := validateMarker(req); !ok {
		s.envelopeError(w, http.StatusBadRequest, msg, "VALIDATION_FAILED")
		return
	}

	s.mu.Lock()
	m, found := s.markers[id]
	switch {
	case !found:
		s.mu.Unlock()
		s.envelopeError(w, http.StatusNotFound, "marker not found", "MARKER_NOT_FOUND")
		return
	case m.OwnerEmail != email:
		s.mu.Unlock()
		s.envelopeError(w, http.StatusForbidden, "only the owner may edit this marker", "MARKER_UPDATE_FORBIDDEN")
		return
	}
	m.Lat, m.Lng = *req.Latitude, *req.Longitude
	m.Title = req.Title
	m.Description = req.Description
	m.Category = cmp.Or(req.Category, "etc")
	m.UpdatedAt = s.now().Format(timestampLayout)
	resp := m.response()
	s.mu.Unlock()

	s.envelope(w, http.StatusOK, resp, "marker updated")
}

func (s *Server) handleDeleteMarker(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r.Context())
	id, ok := markerID(r)
	if !ok {
		s.envelopeError(w, http.StatusNotFound, "marker not found", "MARKER_NOT_FOUND")
		return
	}
	s.mu.Lock()
	m, found := s.markers[id]
	switch {
	case !found:
		s.mu.Unlock()
		s.envelopeError(w, http.StatusNotFound, "marker not found", "MARKER_NOT_FOUND")
		return
	case m.OwnerEmail != email:
		s.mu.Unlock()
		s.envelopeError(w, http.StatusForbidden, "only the owner may delete this marker", "MARKER_DELETE_FORBIDDEN")
		return
	}
	delete(s.markers, id)
	s.mu.Unlock()
	s.envelope(w, http.StatusOK, "marker deleted", "marker deleted")
}

func (s *Server) handleMyMarkers(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r.Context())
	s.envelope(w, http.StatusOK, s.selectMarkers(func(m *marker) bool { return m.OwnerEmail == email }), "my markers loaded")
}

func (s *Server) handleMyMarkersPaged(w http.ResponseWriter, r *http.Request) {
	email := userEmail(r.Context())
	s.writePage(w, r, func(m *marker) bool { return m.OwnerEmail == email })
}

func (s *Server) handlePagedMarkers(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r, nil)
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, keep func(*marker) bool) {
	q := r.URL.Query()
	page, err1 := strconv.Atoi(cmp.Or(q.Get("page"), "0"))
	size, err2 := strconv.Atoi(cmp.Or(q.Get("size"), "10"))
	if err1 != nil || err2 != nil || page < 0 || size <= 0 || size > 100 {
		s.envelopeError(w, http.StatusBadRequest, "invalid page parameters", "INVALID_PAGE_PARAMS")
		return
	}
	all := s.selectMarkers(keep)
	sortMarkers(all, q.Get("sortBy"), q.Get("sortDir"))

	total := len(all)
	pages := (total + size - 1) / size
	start := min(page*size, total)
	end := min(start+size, total)
	s.envelope(w, http.StatusOK, pagedResponse{
		Content:       all[start:end],
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    pages,
		First:         page == 0,
		Last:          page >= pages-1,
	}, "paged markers loaded")
}

func sortMarkers(markers []markerResponse, sortBy, sortDir string) {
	var key func(a, b markerResponse) int
	switch sortBy {
	case "title":
		key = func(a, b markerResponse) int { return cmp.Compare(a.Title, b.Title) }
	case "id":
		key = func(a, b markerResponse) int { return cmp.Compare(a.ID, b.ID) }
	default:
		key = func(a, b markerResponse) int {
			if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		}
	}
	if strings.EqualFold(sortDir, "asc") {
		slices.SortStableFunc(markers, key)
		return
	}
	slices.SortStableFunc(markers, func(a, b markerResponse) int { return key(b, a) })
}

func (s *Server) handleMarkersByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	s.envelope(w, http.StatusOK, s.selectMarkers(func(m *marker) bool { return m.Category == category }), "category markers loaded")
}

func (s *Server) handleSearchMarkers(w http.ResponseWriter, r *http.Request) {
	keyword := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("keyword")))
	if keyword == "" {
		s.envelopeError(w, http.StatusBadRequest, "keyword is required", "KEYWORD_REQUIRED")
		return
	}
	s.envelope(w, http.StatusOK, s.selectMarkers(func(m *marker) bool {
		return strings.Contains(strings.ToLower(m.Title), keyword) ||
			strings.Contains(strings.ToLower(m.Description), keyword)
	}), "search complete")
}

func (s *Server) handleMarkersInArea(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vals, ok := parseFloats(q.Get("minLat"), q.Get("maxLat"), q.Get("minLng"), q.Get("maxLng"))
	if !ok || vals[0] > vals[1] || vals[2] > vals[3] {
		s.envelopeError(w, http.StatusBadRequest, "invalid area coordinates", "INVALID_COORDINATES")
		return
	}
	b := geo.Bounds{MinLat: vals[0], MaxLat: vals[1], MinLng: vals[2], MaxLng: vals[3]}
	s.envelope(w, http.StatusOK, s.selectMarkers(func(m *marker) bool {
		return b.Contains(geo.Point{Lat: m.Lat, Lng: m.Lng})
	}), "area search complete")
}

func (s *Server) handleMarkersNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vals, ok := parseFloats(q.Get("lat"), q.Get("lng"), cmp.Or(q.Get("radius"), "1.0"))
	if !ok {
		s.envelopeError(w, http.StatusBadRequest, "invalid coordinates", "INVALID_COORDINATES")
		return
	}
	center := geo.Point{Lat: vals[0], Lng: vals[1]}
	if !geo.Valid(center) {
		s.envelopeError(w, http.StatusBadRequest, "invalid coordinates", "INVALID_COORDINATES")
		return
	}
	radius := vals[2]
	if radius <= 0 || radius > 100 {
		s.envelopeError(w, http.StatusBadRequest, "radius must be in (0, 100] km", "INVALID_RADIUS")
		return
	}
	s.envelope(w, http.StatusOK, s.selectMarkers(func(m *marker) bool {
		return geo.Distance(center, geo.Point{Lat: m.Lat, Lng: m.Lng}) <= radius
	}), "nearby search complete")
}

func validateMarker(req markerRequest) (string, bool) {
	switch {
	case req.Latitude == nil || *req.Latitude < -90 || *req.Latitude > 90:
		return "latitude must be between -90 and 90", false
	case req.Longitude == nil || *req.Longitude < -180 || *req.Longitude > 180:
		return "longitude must be between -180 and 180", false
	case strings.TrimSpace(req.Description) == "":
		return "description is required", false
	case len(req.Title) > 100:
		return "title must be at most 100 characters", false
	}
	return "", true
}

func markerID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func parseFloats(raw ...string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, v := range raw {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
