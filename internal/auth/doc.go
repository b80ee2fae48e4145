// Package auth owns the DropIt authentication session.
//
// # Overview
//
// Session is a two-state machine, Anonymous and Authenticated, backed by a
// bearer token and a cached user profile. Both are persisted through
// kv.Storage under the authToken and user keys; nothing else in the
// application reads those keys.
//
//	session := auth.NewSession(client, storage, auth.Options{Logger: logger})
//	client.SetAuthorizer(session)
//
//	if _, err := session.Login(ctx, api.Credentials{Email: e, Password: p}); err != nil {
//		// still anonymous
//	}
//
// # Transitions
//
//   - Login: success stores token and user; failure leaves the session as it was.
//   - Logout: always clears locally and returns nil, even if the server call fails.
//   - Refresh failure during an authenticated request: clears the session.
//   - CurrentUser answering 401 after the retry: clears the session.
//
// # Token Validity
//
// IsValid reads the exp claim without verifying the signature and requires
// it to be strictly after the injected clock. Missing, malformed or
// exp-less tokens are invalid; nothing panics or returns an error.
//
// # Refresh and Retry
//
// Session implements api.Authorizer. For each authenticated request it
// attaches "Authorization: Bearer <token>" and sends. On a 401, and only
// when a token was attached, it:
//
//  1. drains and closes the 401 response;
//  2. calls POST /auth/refresh (the refresh token rides in the cookie jar);
//  3. on failure clears the session and returns errors.ErrAuthExpired;
//  4. on success retries the original request once with the new token,
//     replaying the body through req.GetBody.
//
// Whatever the retry returns is handed back to the caller, 401 included.
// There is no second refresh. Concurrent 401s share one refresh call
// through singleflight.
//
// # Storage Failures
//
// Failing reads and writes are logged and otherwise ignored; the in-memory
// session stays authoritative.
package auth
