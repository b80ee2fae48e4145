package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	apperr "github.com/dropit-app/dropit/internal/errors"
)

// Login exchanges credentials for an access token. The backend also sets the
// refresh cookie, which the client's jar keeps for RefreshToken.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := c.validate.Validate(creds); err != nil {
		return nil, err
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, apperr.Decode(errMissingToken)
	}
	return &resp, nil
}

// Register creates an account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, reg Registration) (*RegisterResponse, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	if err := c.validate.Validate(reg); err != nil {
		return nil, err
	}
	var resp RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", reg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the backend to drop the refresh cookie. token may be empty.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.resolve(&url.URL{Path: "/auth/logout"}), nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeResponse(resp, nil)
}

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.doAuth(ctx, http.MethodGet, "/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RefreshToken obtains a new access token using the refresh cookie.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var resp TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", apperr.Decode(errMissingToken)
	}
	return resp.Token, nil
}

// CheckEmail reports whether an email is already registered.
func (c *Client) CheckEmail(ctx context.Context, email string) (*EmailCheck, error) {
	values := url.Values{}
	values.Set("email", strings.TrimSpace(email))
	rel := &url.URL{Path: "/auth/check-email", RawQuery: values.Encode()}
	var resp EmailCheck
	if err := c.doURL(ctx, http.MethodGet, rel, nil, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestPasswordReset asks the backend to send a reset email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperr.Validation("invalid email is required", map[string]string{"email": "is required"})
	}
	body := map[string]string{"email": email}
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/password-reset-request", body, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

var errMissingToken = apperr.New("response carried no token")
