package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	refreshCookieName = "refreshToken"
	timestampLayout   = "2006-01-02T15:04:05"
)

// Options configures a Server. The zero value is usable.
type Options struct {
	// Secret signs issued tokens. A fixed development secret is used when empty.
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
	// AllowedOrigins for CORS; defaults to the Vite and CRA dev servers.
	AllowedOrigins []string
	// RequestLog enables chi's request logger.
	RequestLog bool
}

// Server is an in-memory DropIt backend.
type Server struct {
	mu           sync.Mutex
	markers      map[int64]*marker
	nextMarkerID int64
	users        map[string]*user
	nextUserID   int64
	// generation invalidates every access token issued before a bump.
	generation      int
	refreshDisabled bool
	hits            map[string]int

	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	router     *chi.Mux
	logger     *slog.Logger
}

// New creates a Server with no markers and no users.
func New(opts Options) *Server {
	s := &Server{
		markers:    make(map[int64]*marker),
		users:      make(map[string]*user),
		hits:       make(map[string]int),
		secret:     opts.Secret,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
		router:     chi.NewRouter(),
		logger:     opts.Logger,
	}
	if len(s.secret) == 0 {
		s.secret = []byte("dropit-mock-secret")
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = defaultRefreshTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	s.setupMiddleware(origins, opts.RequestLog)
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware(origins []string, requestLog bool) {
	s.router.Use(middleware.RequestID)
	if requestLog {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           3600,
	}))
	s.router.Use(s.countHits)
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHome)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/markers", func(r chi.Router) {
			r.Get("/", s.handleListMarkers)
			r.Get("/test", s.handleMarkersTest)
			r.Get("/paged", s.handlePagedMarkers)
			r.Get("/category/{category}", s.handleMarkersByCategory)
			r.Get("/search", s.handleSearchMarkers)
			r.Get("/area", s.handleMarkersInArea)
			r.Get("/nearby", s.handleMarkersNearby)
			r.Get("/{id}", s.handleGetMarker)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateMarker)
				r.Put("/{id}", s.handleUpdateMarker)
				r.Delete("/{id}", s.handleDeleteMarker)
				r.Get("/my", s.handleMyMarkers)
				r.Get("/my/paged", s.handleMyMarkersPaged)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/check-email", s.handleCheckEmail)
			r.Post("/password-reset-request", s.handlePasswordReset)
		})
	})
}

// countHits records METHOD PATH for every request.
func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Hits returns how many times METHOD PATH was requested, e.g. "GET /api/markers".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid, so the next refresh succeeds.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// SetRefreshEnabled toggles POST /auth/refresh. When disabled it answers 401.
func (s *Server) SetRefreshEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDisabled = !enabled
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body><h1>DropIt mock backend</h1></body></html>"))
}

// apiResponse is the marker endpoints' envelope.
type apiResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) envelope(w http.ResponseWriter, status int, data any, message string) {
	s.writeJSON(w, status, apiResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: s.now().Format(timestampLayout),
	})
}

func (s *Server) envelopeError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, apiResponse{
		Success:   false,
		Message:   message,
		Error:     code,
		Timestamp: s.now().Format(timestampLayout),
	})
}

// plainError is the auth endpoints' error body.
func (s *Server) plainError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, map[string]string{"message": message, "error": code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dest)
}
