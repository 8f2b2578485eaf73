package artifact

import (
	"context"
	"fmt"

	"github.com/jonwraymond/simrun/cache"
)

// Status is the outcome of a lookup.
type Status int

const (
	// StatusMiss means no entry exists for the ref.
	StatusMiss Status = iota
	// StatusHit means the entry exists.
	StatusHit
	// StatusUnavailable means the store could not tell.
	StatusUnavailable
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusMiss:
		return "miss"
	case StatusHit:
		return "hit"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Lookup is the result of Stat or Read.
type Lookup struct {
	Status Status

	// Entry is set on StatusHit.
	Entry *Entry

	// Reason is set on StatusUnavailable and wraps ErrUnavailable.
	Reason error
}

// Hit returns a hit for e.
func Hit(e *Entry) Lookup {
	return Lookup{Status: StatusHit, Entry: e}
}

// Miss returns a miss.
func Miss() Lookup {
	return Lookup{Status: StatusMiss}
}

// Unavailable returns an unavailable lookup carrying reason.
func Unavailable(reason error) Lookup {
	return Lookup{Status: StatusUnavailable, Reason: fmt.Errorf("%w: %w", ErrUnavailable, reason)}
}

// Ref addresses one entry. ID is a cache key for the local and object
// stores and a signature id for the remote store.
type Ref struct {
	Identity cache.Identity
	ID       string
}

// String returns name@revision/id.
func (r Ref) String() string {
	return r.Identity.String() + "/" + r.ID
}

// Entry is a published, immutable set of files.
type Entry struct {
	Ref Ref

	// Location is where the entry lives: a directory, URL or bucket prefix.
	Location string

	// Files lists the entry contents, sorted by path.
	Files []File
}

// Store is the cache backend contract.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use, including
//     by independent processes sharing the same backing storage.
//   - Resolve: maps inputs to a Ref. An error means the cache is unavailable
//     for this run; it wraps ErrUnavailable.
//   - Stat: has no side effects and is idempotent between writes.
//   - Read: on hit, materializes the entry into workspace. Any other
//     result leaves workspace as it was.
//   - Stat and Read never report an entry whose Write has not completed.
//   - Write: publishes names (relative to workspace) under ref. Errors wrap
//     ErrPublishConflict or ErrPublishFailed.
type Store interface {
	Resolve(ctx context.Context, id cache.Identity, hashable map[string]any) (Ref, error)
	Stat(ctx context.Context, ref Ref) Lookup
	Read(ctx context.Context, ref Ref, workspace string) Lookup
	Write(ctx context.Context, ref Ref, workspace string, names []string) (*Entry, error)
}
