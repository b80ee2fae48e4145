package api

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/geo"
	"github.com/dropit-app/dropit/internal/mockapi"
)

// bearer signs every authenticated request with a fixed token.
type bearer string

func (b bearer) Authorize(_ context.Context, req *http.Request, send SendFunc) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+string(b))
	return send(req)
}

func newMockClient(t *testing.T) (*Client, *mockapi.Server) {
	t.Helper()
	backend := mockapi.New(mockapi.Options{})
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/api", Options{ProbeTimeout: time.Second})
	require.NoError(t, err)
	return c, backend
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != defaultBaseURL {
		t.Fatalf("base = %q, want %q", u.String(), defaultBaseURL)
	}

	u, err = parseBaseURL("example.com:8080/api/?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Path != "/api" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatal("expected error for missing host")
	}
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "envelope success", raw: `{"success":true,"data":[1,2],"message":"ok"}`, want: `[1,2]`},
		{name: "envelope failure", raw: `{"success":false,"message":"nope"}`, wantErr: apperr.ErrRejected},
		{name: "bare object", raw: `{"token":"abc"}`, want: `{"token":"abc"}`},
		{name: "non-boolean success", raw: `{"success":"yes"}`, want: `{"success":"yes"}`},
		{name: "array", raw: ` [1] `, want: `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrap([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestEnvelopeFailureCarriesMessage(t *testing.T) {
	_, err := unwrap([]byte(`{"success":false,"message":"marker fetch failed"}`))
	assert.Equal(t, "marker fetch failed", apperr.Message(err))
}

func TestStatusError_MessageFallbacks(t *testing.T) {
	err := statusError(http.StatusNotFound, []byte(`{"success":false,"message":"marker not found"}`))
	assert.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Equal(t, "marker not found", apperr.Message(err))
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))

	err = statusError(http.StatusUnauthorized, []byte(`{"error":"UNAUTHORIZED"}`))
	assert.Equal(t, "UNAUTHORIZED", apperr.Message(err))

	err = statusError(http.StatusBadGateway, []byte(`<html>bad gateway</html>`))
	assert.Equal(t, "HTTP 502", apperr.Message(err))
}

func TestListMarkers_UnwrapsEnvelope(t *testing.T) {
	c, backend := newMockClient(t)
	require.NoError(t, backend.SeedDemo())

	markers, err := c.ListMarkers(testContext(t))
	require.NoError(t, err)
	require.NotEmpty(t, markers)
	for _, m := range markers {
		_, ok := m.Point()
		assert.True(t, ok, "marker %d should have a valid position", m.ID)
	}
	assert.False(t, markers[0].ParsedCreatedAt().IsZero())
}

func TestGetMarker_NotFoundIsHTTPError(t *testing.T) {
	c, _ := newMockClient(t)
	_, err := c.GetMarker(testContext(t), 999)
	require.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
}

func TestCreateMarker_ValidatesBeforeSending(t *testing.T) {
	c, backend := newMockClient(t)
	c.SetAuthorizer(bearer("irrelevant"))

	_, err := c.CreateMarker(testContext(t), MarkerInput{Latitude: 123, Longitude: 0})
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, backend.Hits("POST /api/markers"))
}

func TestMarkerCRUD_WithAuthorizer(t *testing.T) {
	c, backend := newMockClient(t)
	_, err := backend.AddUser("Kim", "kim@example.com", "Password1")
	require.NoError(t, err)
	token, err := backend.IssueAccessToken("kim@example.com", time.Minute)
	require.NoError(t, err)
	c.SetAuthorizer(bearer(token))
	ctx := testContext(t)

	created, err := c.CreateMarker(ctx, MarkerInput{Latitude: 37.5, Longitude: 127, Title: "bin", Description: "by the door", Category: "clothes"})
	require.NoError(t, err)
	assert.Equal(t, "clothes", created.Category)

	updated, err := c.UpdateMarker(ctx, created.ID, MarkerInput{Latitude: 37.6, Longitude: 127, Title: "moved", Description: "by the door"})
	require.NoError(t, err)
	assert.Equal(t, "moved", updated.Title)

	mine, err := c.MyMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	page, err := c.MyMarkersPaged(ctx, PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalElements)
	assert.True(t, page.First)

	require.NoError(t, c.DeleteMarker(ctx, created.ID))
	_, err = c.GetMarker(ctx, created.ID)
	assert.ErrorIs(t, err, apperr.ErrHTTP)
}

func TestAuthenticatedCallWithoutAuthorizerIs401(t *testing.T) {
	c, _ := newMockClient(t)
	_, err := c.MyMarkers(testContext(t))
	require.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
}

func TestQueryEndpoints(t *testing.T) {
	c, backend := newMockClient(t)
	require.NoError(t, backend.SeedDemo())
	ctx := testContext(t)

	shoes, err := c.MarkersByCategory(ctx, "shoes")
	require.NoError(t, err)
	for _, m := range shoes {
		assert.Equal(t, "shoes", m.Category)
	}
	assert.NotEmpty(t, shoes)

	found, err := c.SearchMarkers(ctx, "Seoul Station")
	require.NoError(t, err)
	require.Len(t, found, 1)

	hall := geo.Point{Lat: 37.5666805, Lng: 126.9784147}
	near, err := c.MarkersNearby(ctx, hall, 0)
	require.NoError(t, err)
	for _, m := range near {
		p, _ := m.Point()
		assert.LessOrEqual(t, geo.Distance(hall, p), DefaultNearbyRadiusKm)
	}

	inArea, err := c.MarkersInArea(ctx, geo.Around(hall, 0.5))
	require.NoError(t, err)
	assert.NotEmpty(t, inArea)

	page, err := c.MarkersPaged(ctx, PageQuery{Size: 3})
	require.NoError(t, err)
	assert.Len(t, page.Content, 3)
	assert.Equal(t, 3, page.Size)

	_, err = c.SearchMarkers(ctx, "   ")
	assert.ErrorIs(t, err, apperr.ErrHTTP)
}

func TestPageQueryDefaults(t *testing.T) {
	got := PageQuery{Page: -3, SortDir: "sideways"}.values()
	assert.Equal(t, url.Values{
		"page":    {"0"},
		"size":    {"10"},
		"sortBy":  {"createdAt"},
		"sortDir": {"desc"},
	}, got)
}

func TestUnreachableBackend(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := NewClient("http://"+addr+"/api", Options{ProbeTimeout: 500 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.ListMarkers(testContext(t))
	require.ErrorIs(t, err, apperr.ErrUnreachable)
	assert.Contains(t, apperr.Message(err), "check that the backend is running")

	assert.ErrorIs(t, c.Probe(testContext(t)), apperr.ErrUnreachable)
	report := c.ProbeAll(testContext(t))
	assert.False(t, report.OK())
	assert.Equal(t, []string{"homepage", "markerAPI", "authAPI"}, report.Failed())
}

func TestProbe_TimeoutFailsClosed(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(server.URL+"/api", Options{ProbeTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	err = c.Probe(context.Background())
	require.ErrorIs(t, err, apperr.ErrUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbeAll_Healthy(t *testing.T) {
	c, _ := newMockClient(t)
	report := c.ProbeAll(testContext(t))
	assert.True(t, report.OK(), "failed: %v", report.Failed())
}

func TestCanceledContextIsNotUnreachable(t *testing.T) {
	c, _ := newMockClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListMarkers(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrUnreachable)
	assert.ErrorIs(t, err, context.Canceled)
}
