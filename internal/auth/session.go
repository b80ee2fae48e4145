package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropit-app/dropit/internal/api"
	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/kv"
)

// refreshTimeout bounds the shared token refresh.
const refreshTimeout = 15 * time.Second

// State is the session state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Client is the subset of the API the session drives.
type Client interface {
	Login(ctx context.Context, creds api.Credentials) (*api.LoginResponse, error)
	Register(ctx context.Context, reg api.Registration) (*api.RegisterResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context) (*api.User, error)
	RefreshToken(ctx context.Context) (string, error)
	CheckEmail(ctx context.Context, email string) (*api.EmailCheck, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
}

var _ Client = (*api.Client)(nil)

// Options tunes a Session.
type Options struct {
	Now    func() time.Time
	Logger *slog.Logger
}

// Session owns the bearer token and the cached profile. It is the only
// component that reads or writes the persisted credentials.
type Session struct {
	mu    sync.RWMutex
	token string
	user  *api.User

	client  Client
	storage kv.Storage
	refresh singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
}

var _ api.Authorizer = (*Session)(nil)

// NewSession restores any persisted credentials from storage. Missing or
// unreadable entries leave the session anonymous.
func NewSession(client Client, storage kv.Storage, opts Options) *Session {
	s := &Session{
		client:  client,
		storage: storage,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.restore()
	return s
}

func (s *Session) restore() {
	if s.storage == nil {
		return
	}
	raw, ok, err := s.storage.Get(kv.KeyAuthToken)
	if err != nil {
		s.logger.Warn("restore auth token failed", slog.String("error", err.Error()))
		return
	}
	if !ok || len(raw) == 0 {
		return
	}
	var u api.User
	found, err := kv.GetJSON(s.storage, kv.KeyUser, &u)
	if err != nil {
		s.logger.Warn("restore user failed", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = string(raw)
	if found && err == nil {
		s.user = &u
	}
}

// State reports Authenticated while a token is held. Use IsValid to also
// check its expiry.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return Anonymous
	}
	return Authenticated
}

// IsValid reports whether a token is held and its expiry claim lies in the
// future. Malformed tokens are invalid.
func (s *Session) IsValid() bool {
	return tokenValid(s.Token(), s.now())
}

// ExpiresAt returns the token expiry, or false when there is none.
func (s *Session) ExpiresAt() (time.Time, bool) {
	return tokenExpiry(s.Token())
}

// Token returns the current bearer token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the cached profile, or nil.
func (s *Session) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login authenticates and stores the token and profile. On failure the
// session is left as it was.
func (s *Session) Login(ctx context.Context, creds api.Credentials) (*api.User, error) {
	resp, err := s.client.Login(ctx, creds)
	if err != nil {
		s.logger.Info("login failed", slog.String("email", creds.Email), slog.String("error", err.Error()))
		return nil, err
	}
	s.set(resp.Token, resp.User)
	s.logger.Info("login succeeded", slog.String("email", creds.Email))
	return s.User(), nil
}

// Register creates an account without signing in.
func (s *Session) Register(ctx context.Context, reg api.Registration) (*api.User, error) {
	resp, err := s.client.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Logout clears local credentials. A failing server call is logged and
// otherwise ignored.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx, s.Token()); err != nil {
		s.logger.Warn("server logout failed, clearing local session", slog.String("error", err.Error()))
	}
	s.Clear()
	return nil
}

// CurrentUser refreshes the cached profile from the server. A 401 that
// survives the refresh-and-retry clears the session.
func (s *Session) CurrentUser(ctx context.Context) (*api.User, error) {
	if s.Token() == "" {
		return nil, apperr.ErrNotAuthenticated
	}
	u, err := s.client.Me(ctx)
	if err != nil {
		if apperr.StatusOf(err) == http.StatusUnauthorized {
			s.Clear()
			return nil, apperr.AuthExpired(err)
		}
		return nil, err
	}
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.persistUser(u)
	return s.User(), nil
}

// CheckEmail reports whether email is already registered.
func (s *Session) CheckEmail(ctx context.Context, email string) (bool, error) {
	resp, err := s.client.CheckEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// RequestPasswordReset asks the backend to send a reset email.
func (s *Session) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := s.client.RequestPasswordReset(ctx, email)
	return err
}

// Clear drops the token and profile from memory and storage.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if s.storage == nil {
		return
	}
	for _, key := range []string{kv.KeyAuthToken, kv.KeyUser} {
		if err := s.storage.Delete(key); err != nil {
			s.logger.Warn("clear session storage failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// Authorize implements api.Authorizer. It attaches the bearer token and, on
// a 401, refreshes the token once and retries once. A failed refresh clears
// the session and yields errors.ErrAuthExpired.
func (s *Session) Authorize(ctx context.Context, req *http.Request, send api.SendFunc) (*http.Response, error) {
	token := s.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := send(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || token == "" {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	s.logger.Debug("access token rejected, refreshing", slog.String("path", req.URL.Path))
	fresh, err := s.refreshToken(ctx)
	if err != nil {
		// The caller gave up; the refresh outcome is unknown.
		if ctx.Err() != nil || apperr.Is(err, context.Canceled) {
			return nil, err
		}
		s.logger.Warn("token refresh failed, clearing session", slog.String("error", err.Error()))
		s.Clear()
		return nil, apperr.AuthExpired(err)
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)
	return send(retry)
}

// refreshToken collapses concurrent refreshes into one request. The shared
// request outlives any single caller, bounded by refreshTimeout; each caller
// stops waiting when its own context ends.
func (s *Session) refreshToken(ctx context.Context) (string, error) {
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		token, err := s.client.RefreshToken(rctx)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		s.persistToken(token)
		return token, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (s *Session) set(token string, user *api.User) {
	s.mu.Lock()
	s.token = token
	if user != nil {
		u := *user
		s.user = &u
	} else {
		s.user = nil
	}
	s.mu.Unlock()

	s.persistToken(token)
	if user != nil {
		s.persistUser(user)
	} else if s.storage != nil {
		_ = s.storage.Delete(kv.KeyUser)
	}
}

func (s *Session) persistToken(token string) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Set(kv.KeyAuthToken, []byte(token)); err != nil {
		s.logger.Warn("persist auth token failed", slog.String("error", err.Error()))
	}
}

func (s *Session) persistUser(u *api.User) {
	if s.storage == nil || u == nil {
		return
	}
	if err := kv.SetJSON(s.storage, kv.KeyUser, u); err != nil {
		s.logger.Warn("persist user failed", slog.String("error", err.Error()))
	}
}
