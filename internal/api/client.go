package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperr "github.com/dropit-app/dropit/internal/errors"
	"github.com/dropit-app/dropit/internal/validation"
)

// SendFunc executes a prepared request. Authorizers call it for the original
// attempt and for the single retry after a token refresh.
type SendFunc func(*http.Request) (*http.Response, error)

// Authorizer decorates authenticated requests with credentials and owns the
// 401 recovery policy.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request, send SendFunc) (*http.Response, error)
}

// Client talks to the DropIt REST backend.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	userAgent    string
	limiter      *rate.Limiter
	auth         Authorizer
	validate     *validation.Validator
	probeTimeout time.Duration
	logger       *slog.Logger
}

const (
	defaultBaseURL      = "http://localhost:8080/api"
	defaultUserAgent    = "dropit/0.1"
	defaultTimeout      = 10 * time.Second
	defaultProbeTimeout = 5 * time.Second
	maxResponseBytes    = 8 << 20
)

// Options tunes a Client. The zero value is usable.
type Options struct {
	Timeout      time.Duration
	ProbeTimeout time.Duration
	// RequestsPerSecond caps outbound traffic; zero disables the limiter.
	RequestsPerSecond float64
	UserAgent         string
	// HTTPClient replaces the default client. A cookie jar is attached when
	// it has none, since token refresh relies on the refresh cookie.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient builds a Client for the API rooted at base, e.g.
// http://localhost:8080/api.
func NewClient(base string, opts Options) (*Client, error) {
	u, err := parseBaseURL(base)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	c := &Client{
		baseURL:      u,
		http:         httpClient,
		userAgent:    opts.UserAgent,
		validate:     validation.New(),
		probeTimeout: opts.ProbeTimeout,
		logger:       opts.Logger,
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = defaultProbeTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c, nil
}

// SetAuthorizer installs the component that signs authenticated requests.
// Without one, authenticated calls go out unsigned.
func (c *Client) SetAuthorizer(a Authorizer) {
	c.auth = a
}

// BaseURL returns the API root the client resolves paths against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	return c.doURL(ctx, method, &url.URL{Path: path}, body, dest, false)
}

func (c *Client) doAuth(ctx context.Context, method, path string, body, dest any) error {
	return c.doURL(ctx, method, &url.URL{Path: path}, body, dest, true)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, body, dest any, authed bool) error {
	req, err := c.newRequest(ctx, method, c.resolve(rel), body)
	if err != nil {
		return err
	}

	var resp *http.Response
	if authed && c.auth != nil {
		resp, err = c.auth.Authorize(ctx, req, c.send)
	} else {
		resp, err = c.send(req)
	}
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := decodeResponse(resp, dest); err != nil {
		c.logger.Debug("api request failed",
			slog.String("method", method),
			slog.String("path", rel.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (c *Client) resolve(rel *url.URL) string {
	u := c.baseURL.JoinPath(rel.Path)
	u.RawQuery = rel.RawQuery
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// send executes req, mapping transport failures to the unreachable class.
// Caller cancellation is passed through untouched.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.Unreachable(err)
	}
	return resp, nil
}

// envelope is the wrapper some endpoints use. Auth endpoints answer with bare
// objects, which is why Success is a pointer.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeResponse(resp *http.Response, dest any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Unreachable(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, raw)
	}
	payload, err := unwrap(raw)
	if err != nil {
		return err
	}
	if dest == nil || len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return apperr.Decode(err)
	}
	return nil
}

// unwrap resolves the envelope once: data on success, the envelope message
// on failure, and the raw payload when there is no envelope at all.
func unwrap(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Success == nil {
		return trimmed, nil
	}
	if !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return nil, apperr.Rejected(msg)
	}
	return env.Data, nil
}

func statusError(status int, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if msg := strings.TrimSpace(env.Message); msg != "" {
			return apperr.HTTP(status, msg)
		}
		if msg := strings.TrimSpace(env.Error); msg != "" {
			return apperr.HTTP(status, msg)
		}
	}
	return apperr.HTTP(status, "")
}

func parseBaseURL(base string) (*url.URL, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", base, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_base %q: missing host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// serverRoot is the backend origin without the API path, where the home
// page lives.
func (c *Client) serverRoot() string {
	u := *c.baseURL
	u.Path = "/"
	return u.String()
}
