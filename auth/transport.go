package auth

import (
	"fmt"
	"net/http"
)

// Transport attaches credentials from Source to every request.
//
// Usage:
//
//	client := &http.Client{Transport: &auth.Transport{Source: src}}
type Transport struct {
	Source TokenSource

	// Base is the underlying transport. Default: http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper. The caller's request is cloned,
// never modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Source == nil {
		return base.RoundTrip(req)
	}

	cred, err := t.Source.Credential(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("auth: credential for %s: %w", req.URL.Host, err)
	}

	out := req.Clone(req.Context())
	cred.Apply(out)
	return base.RoundTrip(out)
}

// NewClient returns an http.Client whose requests carry src's credentials.
func NewClient(src TokenSource, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &Transport{Source: src, Base: base}}
}
