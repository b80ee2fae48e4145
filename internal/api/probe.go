package api

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	apperr "github.com/dropit-app/dropit/internal/errors"
)

// Probe checks that the markers API answers within the probe timeout. Any
// failure, including the timeout, is reported as unreachable.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	if err := c.do(ctx, http.MethodGet, "/markers/test", nil, nil); err != nil {
		if apperr.Is(err, apperr.ErrUnreachable) {
			return err
		}
		return apperr.Unreachable(err)
	}
	return nil
}

// ConnectivityReport summarises ProbeAll.
type ConnectivityReport struct {
	HomePage  bool `json:"homepage"`
	MarkerAPI bool `json:"markerAPI"`
	AuthAPI   bool `json:"authAPI"`
}

// OK reports whether every check passed.
func (r ConnectivityReport) OK() bool {
	return r.HomePage && r.MarkerAPI && r.AuthAPI
}

// Failed lists the names of the checks that did not pass.
func (r ConnectivityReport) Failed() []string {
	var out []string
	if !r.HomePage {
		out = append(out, "homepage")
	}
	if !r.MarkerAPI {
		out = append(out, "markerAPI")
	}
	if !r.AuthAPI {
		out = append(out, "authAPI")
	}
	return out
}

// ProbeAll checks the home page, the markers API and the auth API in
// parallel, each bounded by the probe timeout.
func (c *Client) ProbeAll(ctx context.Context) ConnectivityReport {
	var (
		report ConnectivityReport
		wg     sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		report.HomePage = c.probeStatus(ctx, c.serverRoot(), func(code int) bool { return code < 400 })
	}()
	go func() {
		defer wg.Done()
		report.MarkerAPI = c.Probe(ctx) == nil
	}()
	go func() {
		defer wg.Done()
		values := url.Values{}
		values.Set("email", "test@test.com")
		target := c.resolve(&url.URL{Path: "/auth/check-email", RawQuery: values.Encode()})
		// A 400 still proves the auth controller is up.
		report.AuthAPI = c.probeStatus(ctx, target, func(code int) bool {
			return code < 400 || code == http.StatusBadRequest
		})
	}()
	wg.Wait()
	return report
}

func (c *Client) probeStatus(ctx context.Context, target string, ok func(int) bool) bool {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := c.send(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return ok(resp.StatusCode)
}
