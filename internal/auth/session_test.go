package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/kv"
	"github.com/dropit-app/dropit/internal/mockapi"
)

const (
	testEmail    = "kim@example.com"
	testPassword = "Password1"
)

type fixture struct {
	session *Session
	client  *api.Client
	backend *mockapi.Server
	storage *kv.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := mockapi.New(mockapi.Options{})
	_, err := backend.AddUser("Kim", testEmail, testPassword)
	require.NoError(t, err)
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL+"/api", api.Options{})
	require.NoError(t, err)
	storage := kv.NewMemory()
	session := NewSession(client, storage, Options{})
	client.SetAuthorizer(session)
	return fixture{session: session, client: client, backend: backend, storage: storage}
}

func (f fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.session.Login(context.Background(), api.Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return raw
}

func TestLogin_StoresTokenAndUser(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Anonymous, f.session.State())

	f.login(t)

	assert.Equal(t, Authenticated, f.session.State())
	assert.True(t, f.session.IsValid())
	require.NotNil(t, f.session.User())
	assert.Equal(t, "Kim", f.session.User().Name)

	raw, ok, err := f.storage.Get(kv.KeyAuthToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.session.Token(), string(raw))

	restored := NewSession(f.client, f.storage, Options{})
	assert.Equal(t, f.session.Token(), restored.Token())
	require.NotNil(t, restored.User())
	assert.Equal(t, testEmail, restored.User().Email)
}

func TestLogin_FailureStaysAnonymous(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.Login(context.Background(), api.Credentials{Email: testEmail, Password: "wrong"})
	require.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
	assert.Equal(t, Anonymous, f.session.State())
	_, ok, _ := f.storage.Get(kv.KeyAuthToken)
	assert.False(t, ok)
}

type failingClient struct {
	Client
	logoutCalls int
}

func (c *failingClient) Logout(context.Context, string) error {
	c.logoutCalls++
	return apperr.Unreachable(errors.New("connection refused"))
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	storage := kv.NewMemory()
	require.NoError(t, storage.Set(kv.KeyAuthToken, []byte("tok")))
	require.NoError(t, kv.SetJSON(storage, kv.KeyUser, api.User{Name: "Kim"}))

	client := &failingClient{}
	s := NewSession(client, storage, Options{})
	require.Equal(t, Authenticated, s.State())

	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, 1, client.logoutCalls)
	assert.Equal(t, Anonymous, s.State())
	assert.Nil(t, s.User())
	_, ok, _ := storage.Get(kv.KeyAuthToken)
	assert.False(t, ok)
	_, ok, _ = storage.Get(kv.KeyUser)
	assert.False(t, ok)
}

func TestIsValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		token func(t *testing.T) string
		want  bool
	}{
		{name: "no token", token: func(*testing.T) string { return "" }, want: false},
		{name: "future expiry", token: func(t *testing.T) string { return signed(t, now.Add(time.Minute)) }, want: true},
		{name: "past expiry", token: func(t *testing.T) string { return signed(t, now.Add(-time.Minute)) }, want: false},
		{name: "expiry equals now", token: func(t *testing.T) string { return signed(t, now) }, want: false},
		{name: "malformed", token: func(*testing.T) string { return "not-a-jwt" }, want: false},
		{name: "bad payload", token: func(*testing.T) string { return "aaa.%%%.bbb" }, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := kv.NewMemory()
			if tok := tt.token(t); tok != "" {
				require.NoError(t, storage.Set(kv.KeyAuthToken, []byte(tok)))
			}
			s := NewSession(&failingClient{}, storage, Options{Now: func() time.Time { return now }})
			assert.Equal(t, tt.want, s.IsValid())
		})
	}
}

func TestAuthorize_RefreshSuccessIsTransparent(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.AddMarker(mockapi.MarkerSeed{Lat: 37.5, Lng: 127, Title: "mine", Description: "d", OwnerEmail: testEmail})
	before := f.session.Token()

	f.backend.ExpireAccessTokens()

	mine, err := f.client.MyMarkers(context.Background())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 1, f.backend.Hits("POST /api/auth/refresh"))
	assert.Equal(t, 2, f.backend.Hits("GET /api/markers/my"))
	assert.NotEqual(t, before, f.session.Token())

	raw, _, _ := f.storage.Get(kv.KeyAuthToken)
	assert.Equal(t, f.session.Token(), string(raw))
}

func TestAuthorize_RetryReplaysBody(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()

	created, err := f.client.CreateMarker(context.Background(), api.MarkerInput{
		Latitude: 37.5, Longitude: 127, Title: "bin", Description: "replayed body",
	})
	require.NoError(t, err)
	assert.Equal(t, "replayed body", created.Description)
	assert.Equal(t, 2, f.backend.Hits("POST /api/markers"))
}

func TestAuthorize_RefreshFailureClearsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.backend.ExpireAccessTokens()
	f.backend.SetRefreshEnabled(false)

	_, err := f.client.MyMarkers(context.Background())
	require.ErrorIs(t, err, apperr.ErrAuthExpired)
	assert.Contains(t, err.Error(), "please log in again")
	assert.Equal(t, Anonymous, f.session.State())
	_, ok, _ := f.storage.Get(kv.KeyAuthToken)
	assert.False(t, ok)
	_, ok, _ = f.storage.Get(kv.KeyUser)
	assert.False(t, ok)
}

func TestAuthorize_AtMostOneRetry(t *testing.T) {
	var protected, refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			refreshes.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token":"fresh","message":"ok"}`))
		default:
			protected.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"authentication required"}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL+"/api", api.Options{})
	require.NoError(t, err)
	storage := kv.NewMemory()
	require.NoError(t, storage.Set(kv.KeyAuthToken, []byte("stale")))
	s := NewSession(client, storage, Options{})
	client.SetAuthorizer(s)

	_, err = client.MyMarkers(context.Background())
	require.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
	assert.Equal(t, int32(2), protected.Load())
	assert.Equal(t, int32(1), refreshes.Load())
}

// slowRefreshClient holds every refresh until release is closed.
type slowRefreshClient struct {
	Client
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (c *slowRefreshClient) RefreshToken(ctx context.Context) (string, error) {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.release:
		return "fresh", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// rejectStale answers 401 to the stale token and 200 otherwise.
func rejectStale(r *http.Request) (*http.Response, error) {
	status := http.StatusOK
	if r.Header.Get("Authorization") == "Bearer stale" {
		status = http.StatusUnauthorized
	}
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func authorize(ctx context.Context, s *Session) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://dropit.test/api/markers/my", nil)
	if err != nil {
		return nil, err
	}
	return s.Authorize(ctx, req, rejectStale)
}

func TestAuthorize_CancelledCallerKeepsSession(t *testing.T) {
	storage := kv.NewMemory()
	require.NoError(t, storage.Set(kv.KeyAuthToken, []byte("stale")))
	client := &slowRefreshClient{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(client, storage, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := authorize(ctx, s)
		first <- err
	}()
	<-client.started
	cancel()

	err := <-first
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperr.ErrAuthExpired)
	assert.Equal(t, Authenticated, s.State(), "a cancelled caller does not clear the session")
	raw, ok, _ := storage.Get(kv.KeyAuthToken)
	require.True(t, ok)
	assert.Equal(t, "stale", string(raw))

	second := make(chan error, 1)
	var status int
	go func() {
		resp, err := authorize(context.Background(), s)
		if resp != nil {
			status = resp.StatusCode
		}
		second <- err
	}()
	close(client.release)

	require.NoError(t, <-second)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "fresh", s.Token())
	raw, _, _ = storage.Get(kv.KeyAuthToken)
	assert.Equal(t, "fresh", string(raw))
}

func TestAuthorize_AnonymousDoesNotRefresh(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.MyMarkers(context.Background())
	require.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Zero(t, f.backend.Hits("POST /api/auth/refresh"))
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.session.CurrentUser(context.Background())
	require.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	f.login(t)
	u, err := f.session.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testEmail, u.Email)

	f.backend.ExpireAccessTokens()
	f.backend.SetRefreshEnabled(false)
	_, err = f.session.CurrentUser(context.Background())
	require.ErrorIs(t, err, apperr.ErrAuthExpired)
	assert.Equal(t, Anonymous, f.session.State())
}

func TestRegisterAndCheckEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exists, err := f.session.CheckEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, exists)

	u, err := f.session.Register(ctx, api.Registration{Name: "Lee", Email: "lee@example.com", Password: "Password1"})
	require.NoError(t, err)
	assert.Equal(t, "Lee", u.Name)
	assert.Equal(t, Anonymous, f.session.State())

	_, err = f.session.Register(ctx, api.Registration{Name: "Lee", Email: "lee@example.com", Password: "Password1"})
	require.ErrorIs(t, err, apperr.ErrHTTP)
	assert.Equal(t, http.StatusConflict, apperr.StatusOf(err))

	_, err = f.session.Register(ctx, api.Registration{Name: "L", Email: "bad", Password: "short"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.session.RequestPasswordReset(ctx, testEmail))
	require.ErrorIs(t, f.session.RequestPasswordReset(ctx, " "), apperr.ErrValidation)
}

func TestRestore_CorruptUserKeepsToken(t *testing.T) {
	storage := kv.NewMemory()
	require.NoError(t, storage.Set(kv.KeyAuthToken, []byte("tok")))
	require.NoError(t, storage.Set(kv.KeyUser, []byte("{not json")))

	s := NewSession(&failingClient{}, storage, Options{})
	assert.Equal(t, "tok", s.Token())
	assert.Nil(t, s.User())
}
