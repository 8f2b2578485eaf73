// Package auth supplies client credentials for calls to the remote artifact
// service.
//
// A TokenSource yields the credential for one request: a static bearer
// token, an API key, or a short-lived HS256 JWT signed with a shared key.
// Transport is an http.RoundTripper that attaches it to every request.
package auth
