package cache

import (
	"errors"
	"fmt"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilTable        = errors.New("cache: memo table is nil")
	ErrInvalidKey      = errors.New("cache: key is invalid")
	ErrKeyTooLong      = errors.New("cache: key exceeds max length")
	ErrInvalidIdentity = errors.New("cache: identity is invalid")
	ErrKeysExhausted   = errors.New("cache: no unused key found")
)

// Identity names a simtool and the revision whose results are cached.
//
// An empty Revision marks an unversioned tool. Unversioned tools are never
// cached (see Policy).
type Identity struct {
	Name     string
	Revision string
}

// String returns name@revision, or just the name for unversioned tools.
func (id Identity) String() string {
	if id.Revision == "" {
		return id.Name
	}
	return id.Name + "@" + id.Revision
}

// Versioned reports whether the identity carries a revision.
func (id Identity) Versioned() bool {
	return id.Revision != ""
}

// Validate checks that the identity can be used as a cache namespace.
// Both parts become directory names, so path separators are rejected.
func (id Identity) Validate() error {
	if err := validateSegment(id.Name); err != nil {
		return fmt.Errorf("%w: name: %v", ErrInvalidIdentity, err)
	}
	if id.Revision == "" {
		return nil
	}
	if err := validateSegment(id.Revision); err != nil {
		return fmt.Errorf("%w: revision: %v", ErrInvalidIdentity, err)
	}
	return nil
}

// Key is an opaque token naming one cache entry within an Identity.
type Key string

// String returns the key text.
func (k Key) String() string {
	return string(k)
}

// ValidateKey checks if a key is valid for use as an entry name.
func ValidateKey(key Key) error {
	s := string(key)
	if s == "" || strings.TrimSpace(s) == "" {
		return ErrInvalidKey
	}
	if len(s) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(s, "\n\r/\\") || s == "." || s == ".." {
		return ErrInvalidKey
	}
	return nil
}

func validateSegment(s string) error {
	switch {
	case strings.TrimSpace(s) == "":
		return errors.New("empty")
	case s == "." || s == "..":
		return fmt.Errorf("%q is reserved", s)
	case strings.ContainsAny(s, "/\\\n\r\x00"):
		return fmt.Errorf("%q contains a path separator or control character", s)
	}
	return nil
}
