// Package mockapi is an in-memory stand-in for the DropIt backend.
//
// It serves the same REST contract as the real server under /api, with the
// same quirks: marker endpoints wrap payloads in {success, data, message,
// timestamp}, auth endpoints answer with bare objects, timestamps are
// zone-less local date-times, and the refresh token travels as an httpOnly
// cookie named refreshToken.
//
// Tests mount it on httptest.NewServer; `dropit mock-server` runs it for
// local development. Routing is chi with go-chi/cors in front, tokens are
// HS256 JWTs (golang-jwt) and passwords are bcrypt hashes.
//
// Test hooks:
//
//   - AddUser, AddMarker and SeedDemo populate state without HTTP.
//   - IssueAccessToken signs tokens with arbitrary lifetimes.
//   - ExpireAccessTokens makes every outstanding access token answer 401
//     while leaving refresh tokens valid.
//   - SetRefreshEnabled(false) makes POST /auth/refresh fail.
//   - Hits counts requests per "METHOD /path".
package mockapi
