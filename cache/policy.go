package cache

// Policy decides whether a run reads and writes the result cache.
type Policy struct {
	// Requested is the caller's cache flag.
	Requested bool
}

// DefaultPolicy returns a policy with caching requested.
func DefaultPolicy() Policy {
	return Policy{Requested: true}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{Requested: false}
}

// ShouldCache reports whether results for id may be read from or written to
// the cache. Unversioned tools are never cached, whatever was requested.
func (p Policy) ShouldCache(id Identity) bool {
	return p.Requested && id.Versioned()
}
