package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Credential is what a TokenSource yields for one request.
type Credential struct {
	// Header is the request header to set. Default: "Authorization".
	Header string

	// Value is the full header value, prefix included.
	Value string
}

// Apply sets the credential on req.
func (c Credential) Apply(req *http.Request) {
	header := c.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, c.Value)
}

// TokenSource produces credentials.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a source that cannot produce a credential returns an error
// wrapping ErrMissingCredentials or ErrSigningFailed.
type TokenSource interface {
	Credential(ctx context.Context) (Credential, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Credential returns "Bearer <token>".
func (t StaticToken) Credential(context.Context) (Credential, error) {
	tok := strings.TrimSpace(string(t))
	if tok == "" {
		return Credential{}, ErrMissingCredentials
	}
	return Credential{Value: "Bearer " + tok}, nil
}

// APIKey sends a key in a custom header.
type APIKey struct {
	// Header defaults to "X-API-Key".
	Header string
	Key    string
}

// Credential returns the key in the configured header.
func (k APIKey) Credential(context.Context) (Credential, error) {
	if strings.TrimSpace(k.Key) == "" {
		return Credential{}, ErrMissingCredentials
	}
	header := k.Header
	if header == "" {
		header = "X-API-Key"
	}
	return Credential{Header: header, Value: k.Key}, nil
}

// Config selects and configures a TokenSource.
type Config struct {
	// Type is one of "none", "bearer", "api_key", "jwt".
	Type string `yaml:"type"`

	// Token is the bearer token or API key.
	Token string `yaml:"token"`

	// Header overrides the API key header.
	Header string `yaml:"header"`

	// JWT configures signed tokens.
	JWT JWTConfig `yaml:"jwt"`
}

// NewTokenSource builds the source described by cfg. Type "none" or empty
// returns nil, meaning requests are sent without credentials.
func NewTokenSource(cfg Config) (TokenSource, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "bearer":
		if cfg.Token == "" {
			return nil, fmt.Errorf("%w: bearer auth requires a token", ErrInvalidConfig)
		}
		return StaticToken(cfg.Token), nil
	case "api_key":
		if cfg.Token == "" {
			return nil, fmt.Errorf("%w: api_key auth requires a token", ErrInvalidConfig)
		}
		return APIKey{Header: cfg.Header, Key: cfg.Token}, nil
	case "jwt":
		return NewJWTSource(cfg.JWT)
	default:
		return nil, fmt.Errorf("%w: unknown auth type %q", ErrInvalidConfig, cfg.Type)
	}
}
