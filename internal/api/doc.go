// Package api provides an HTTP client for the DropIt REST backend.
//
// # Overview
//
// This package is the remote access layer. Every operation takes plain
// parameters, issues one HTTP request and returns either a typed payload or
// a classified error from internal/errors. The client holds no domain state;
// stores and the auth session build on top of it.
//
// # Architecture
//
//   - client.go: request construction, sending, envelope and error handling
//   - markers.go: marker endpoints (list, CRUD, paging, search, area, nearby)
//   - auth.go: login, register, logout, profile, refresh, email check, reset
//   - probe.go: liveness probe and the three-way connectivity report
//   - types.go: data structures mirroring the backend schema
//
// # Client Usage
//
//	client, err := api.NewClient("http://localhost:8080/api", api.Options{
//		ProbeTimeout:      5 * time.Second,
//		RequestsPerSecond: 10,
//	})
//	if err != nil {
//		return err
//	}
//	client.SetAuthorizer(session)
//
//	markers, err := client.ListMarkers(ctx)
//
// # Envelopes
//
// The backend is inconsistent: marker endpoints wrap payloads in
// {success, data, message}, auth endpoints answer with bare objects. The
// shape is resolved once in decodeResponse and never leaks out:
//
//   - success true: data is decoded into the destination
//   - success false: the call fails with errors.ErrRejected and the envelope message
//   - no boolean success field: the raw payload is decoded
//
// # Error Handling
//
// Failures are normalised into the classes of internal/errors:
//
//   - Transport failures (connection refused, DNS, timeouts) become
//     ErrUnreachable with a message pointing at the backend.
//   - Status codes >= 400 become ErrHTTP carrying the status and the
//     message or error field of the body, else "HTTP {status}".
//   - Undecodable bodies become ErrDecode.
//   - Invalid request payloads are rejected locally with ErrValidation
//     before anything is sent.
//
// Caller cancellation (context.Canceled) is returned as-is so callers can
// tell it apart from an outage.
//
// # Authentication
//
// Calls that need a signed-in user go through the Authorizer installed with
// SetAuthorizer. The client hands it the prepared request plus a SendFunc;
// the authorizer attaches the bearer token and decides whether a 401 warrants
// a refresh and one retry. Request bodies are built from byte readers, so
// req.GetBody can replay them.
//
// The refresh token travels as an httpOnly cookie. NewClient attaches a
// cookie jar to the http.Client so the cookie set by Login is presented by
// RefreshToken.
//
// # Rate Limiting
//
// Options.RequestsPerSecond installs a token bucket (golang.org/x/time/rate)
// shared by every request. Waiting on the bucket honours the request context.
//
// # Probes
//
// Probe hits GET /markers/test with its own deadline (Options.ProbeTimeout,
// default 5s). A timeout is reported as unreachable rather than hanging.
// ProbeAll runs the home page, markers and auth checks in parallel and
// returns a ConnectivityReport; the auth check treats 400 as alive.
//
// # Coordinates and Timestamps
//
// Coordinate tolerates numbers, numeric strings and null. Unparseable values
// leave Valid false so a single bad marker never fails a whole listing;
// Marker.Point reports whether the position is usable.
//
// Timestamps are the backend's zone-less LocalDateTime
// ("2006-01-02T15:04:05[.fraction]"), parsed in the local zone. RFC3339 is
// accepted too. Missing or malformed timestamps yield time.Time{}.
//
// # Thread Safety
//
// Client is safe for concurrent use once SetAuthorizer has been called.
package api
