package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures signed bearer tokens.
type JWTConfig struct {
	// Key is the HMAC signing key.
	Key string `yaml:"key"`

	// Issuer is the iss claim.
	Issuer string `yaml:"issuer"`

	// Subject is the sub claim, usually the submitting user.
	Subject string `yaml:"subject"`

	// Audience is the aud claim.
	Audience string `yaml:"audience"`

	// TTL is the token lifetime.
	// Default: 5 minutes
	TTL time.Duration `yaml:"ttl"`
}

// JWTSource signs HS256 tokens and reuses each one until it is close to
// expiry.
type JWTSource struct {
	config JWTConfig
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewJWTSource creates a JWT token source.
func NewJWTSource(config JWTConfig) (*JWTSource, error) {
	if config.Key == "" {
		return nil, fmt.Errorf("%w: jwt auth requires a signing key", ErrInvalidConfig)
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	return &JWTSource{config: config, now: time.Now}, nil
}

// Credential returns "Bearer <jwt>".
func (s *JWTSource) Credential(context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// Refresh once less than a fifth of the lifetime remains.
	if s.token == "" || now.Add(s.config.TTL/5).After(s.expires) {
		expires := now.Add(s.config.TTL)
		claims := jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   s.config.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		}
		if s.config.Audience != "" {
			claims.Audience = jwt.ClaimStrings{s.config.Audience}
		}

		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Key))
		if err != nil {
			return Credential{}, fmt.Errorf("%w: %v", ErrSigningFailed, err)
		}
		s.token = signed
		s.expires = expires
	}

	return Credential{Value: "Bearer " + s.token}, nil
}

// Ensure JWTSource implements TokenSource
var _ TokenSource = (*JWTSource)(nil)
