package mockapi

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	ID               int64
	Name             string
	Email            string
	PasswordHash     []byte
	Phone            string
	AgreeToMarketing bool
	CreatedAt        string
	UpdatedAt        string
}

type userResponse struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	AgreeToMarketing bool   `json:"agreeToMarketing"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

func (u *user) response() userResponse {
	return userResponse{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Phone:            u.Phone,
		AgreeToMarketing: u.AgreeToMarketing,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// tokenClaims matches the backend's JWT layout plus a generation counter.
type tokenClaims struct {
	UserID     int64  `json:"userId"`
	Email      string `json:"email,omitempty"`
	Type       string `json:"type"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

type contextKey string

const contextKeyEmail contextKey = "email"

// AddUser registers an account directly and returns its id.
func (s *Server) AddUser(name, email, password string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := s.users[email]; exists {
		return 0, errors.New("email already registered")
	}
	s.nextUserID++
	ts := s.now().Format(timestampLayout)
	s.users[email] = &user{
		ID:           s.nextUserID,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	return s.nextUserID, nil
}

// IssueAccessToken signs an access token for email that expires after ttl.
// A negative ttl yields an already expired token.
func (s *Server) IssueAccessToken(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	u, ok := s.users[strings.ToLower(email)]
	gen := s.generation
	s.mu.Unlock()
	if !ok {
		return "", errors.New("unknown user")
	}
	return s.sign(u, "access", gen, ttl)
}

func (s *Server) sign(u *user, kind string, gen int, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID:     u.ID,
		Type:       kind,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if kind == "access" {
		claims.Email = u.Email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) parse(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// authenticate resolves the bearer token to a user email.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", false
	}
	claims, err := s.parse(raw)
	if err != nil || claims.Type != "access" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if claims.Generation < s.generation {
		return "", false
	}
	if _, ok := s.users[claims.Subject]; !ok {
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := s.authenticate(r)
		if !ok {
			s.envelopeError(w, http.StatusUnauthorized, "authentication required", "AUTHENTICATION_REQUIRED")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyEmail, email)))
	})
}

func userEmail(ctx context.Context) string {
	email, _ := ctx.Value(contextKeyEmail).(string)
	return email
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.plainError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.mu.Lock()
	u, ok := s.users[email]
	gen := s.generation
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		s.plainError(w, http.StatusUnauthorized, "invalid email or password", "LOGIN_FAILED")
		return
	}

	access, err := s.sign(u, "access", gen, s.accessTTL)
	if err != nil {
		s.plainError(w, http.StatusInternalServerError, "token signing failed", "LOGIN_FAILED")
		return
	}
	refresh, err := s.sign(u, "refresh", gen, s.refreshTTL)
	if err != nil {
		s.plainError(w, http.StatusInternalServerError, "token signing failed", "LOGIN_FAILED")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refresh,
		Path:     "/",
		MaxAge:   int(s.refreshTTL.Seconds()),
		HttpOnly: true,
	})
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":   access,
		"user":    u.response(),
		"message": "login successful",
	})
}

type registerRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Phone            string `json:"phone"`
	AgreeToMarketing bool   `json:"agreeToMarketing"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.plainError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || len(req.Password) < 8 || len(strings.TrimSpace(req.Name)) < 2 {
		s.plainError(w, http.StatusBadRequest, "invalid registration", "VALIDATION_FAILED")
		return
	}
	if _, err := s.AddUser(strings.TrimSpace(req.Name), req.Email, req.Password); err != nil {
		s.plainError(w, http.StatusConflict, "email already in use", "EMAIL_ALREADY_EXISTS")
		return
	}
	s.mu.Lock()
	u := s.users[strings.ToLower(strings.TrimSpace(req.Email))]
	u.Phone = req.Phone
	u.AgreeToMarketing = req.AgreeToMarketing
	resp := u.response()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "registration successful",
		"user":    resp,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := s.authenticate(r)
	if !ok {
		s.plainError(w, http.StatusUnauthorized, "not authenticated", "UNAUTHORIZED")
		return
	}
	s.mu.Lock()
	resp := s.users[email].response()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	disabled := s.refreshDisabled
	gen := s.generation
	s.mu.Unlock()
	if disabled {
		s.plainError(w, http.StatusUnauthorized, "token refresh failed", "TOKEN_REFRESH_FAILED")
		return
	}
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		s.plainError(w, http.StatusUnauthorized, "no refresh token", "NO_REFRESH_TOKEN")
		return
	}
	claims, err := s.parse(cookie.Value)
	if err != nil || claims.Type != "refresh" {
		s.plainError(w, http.StatusUnauthorized, "invalid refresh token", "INVALID_REFRESH_TOKEN")
		return
	}
	s.mu.Lock()
	u, ok := s.users[claims.Subject]
	s.mu.Unlock()
	if !ok {
		s.plainError(w, http.StatusUnauthorized, "token refresh failed", "TOKEN_REFRESH_FAILED")
		return
	}
	access, err := s.sign(u, "access", gen, s.accessTTL)
	if err != nil {
		s.plainError(w, http.StatusUnauthorized, "token refresh failed", "TOKEN_REFRESH_FAILED")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": access, "message": "token refreshed"})
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("email")))
	if email == "" {
		s.plainError(w, http.StatusBadRequest, "email is required", "EMAIL_REQUIRED")
		return
	}
	s.mu.Lock()
	_, exists := s.users[email]
	s.mu.Unlock()
	msg := "email is available"
	if exists {
		msg = "email already in use"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"exists": exists, "message": msg})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decodeBody(w, r, &req); err != nil || strings.TrimSpace(req["email"]) == "" {
		s.plainError(w, http.StatusBadRequest, "email is required", "EMAIL_REQUIRED")
		return
	}
	s.logger.Info("password reset requested", "email", req["email"])
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "password reset email sent"})
}
