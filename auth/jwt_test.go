package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewJWTSource_RequiresKey(t *testing.T) {
	if _, err := NewJWTSource(JWTConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewJWTSource() error = %v, want ErrInvalidConfig", err)
	}
}

func TestJWTSource_SignsVerifiableToken(t *testing.T) {
	src, err := NewJWTSource(JWTConfig{
		Key:      "secret",
		Issuer:   "simrun",
		Subject:  "alice",
		Audience: "squid",
		TTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("NewJWTSource() error = %v", err)
	}

	cred, err := src.Credential(context.Background())
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if !strings.HasPrefix(cred.Value, "Bearer ") {
		t.Fatalf("credential = %q, want Bearer prefix", cred.Value)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(cred.Value, "Bearer "), claims,
		func(*jwt.Token) (any, error) { return []byte("secret"), nil },
		jwt.WithIssuer("simrun"),
		jwt.WithAudience("squid"),
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !token.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("sub = %q, want alice", claims.Subject)
	}
}

func TestJWTSource_ReusesUntilNearExpiry(t *testing.T) {
	src, _ := NewJWTSource(JWTConfig{Key: "secret", TTL: 10 * time.Minute})
	now := time.Unix(1_700_000_000, 0)
	src.now = func() time.Time { return now }
	ctx := context.Background()

	c1, _ := src.Credential(ctx)
	now = now.Add(5 * time.Minute)
	c2, _ := src.Credential(ctx)
	if c1 != c2 {
		t.Error("token should be reused while fresh")
	}

	now = now.Add(4 * time.Minute)
	c3, _ := src.Credential(ctx)
	if c3 == c2 {
		t.Error("token should be refreshed near expiry")
	}
}

func TestNewTokenSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: Config{}, wantNil: true},
		{name: "bearer", cfg: Config{Type: "bearer", Token: "t"}},
		{name: "bearer without token", cfg: Config{Type: "bearer"}, wantErr: true},
		{name: "api key", cfg: Config{Type: "api_key", Token: "k"}},
		{name: "jwt", cfg: Config{Type: "jwt", JWT: JWTConfig{Key: "s"}}},
		{name: "jwt without key", cfg: Config{Type: "jwt"}, wantErr: true},
		{name: "unknown", cfg: Config{Type: "kerberos"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewTokenSource(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTokenSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if (src == nil) != tt.wantNil {
				t.Errorf("source = %v, wantNil %v", src, tt.wantNil)
			}
		})
	}
}

func TestAPIKey_DefaultHeader(t *testing.T) {
	cred, err := APIKey{Key: "k"}.Credential(context.Background())
	if err != nil || cred.Header != "X-API-Key" || cred.Value != "k" {
		t.Errorf("Credential() = %+v, %v", cred, err)
	}
	if _, err := (APIKey{}).Credential(context.Background()); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("empty key error = %v", err)
	}
}
