package run

import (
	"fmt"

	"github.com/jonwraymond/simrun/backend"
	"github.com/jonwraymond/simrun/cache"
)

// Venue selects the execution backend and the cache tier of a run.
type Venue string

const (
	// VenueLocal submits to the local queue and uses the user cache.
	VenueLocal Venue = "local"
	// VenueRemote submits to a remote venue and uses the user cache.
	VenueRemote Venue = "remote"
	// VenueTrustedLocal runs locally through the privileged helpers and
	// the global cache.
	VenueTrustedLocal Venue = "trustedLocal"
	// VenueTrustedRemote runs remotely through the privileged helpers and
	// the global cache.
	VenueTrustedRemote Venue = "trustedRemote"
	// VenueNoSubmit runs the notebook engine directly.
	VenueNoSubmit Venue = "noSubmit"
)

// Venues lists every venue.
var Venues = []Venue{VenueLocal, VenueRemote, VenueTrustedLocal, VenueTrustedRemote, VenueNoSubmit}

// ParseVenue parses a venue name. The empty string parses to the empty
// venue, which asks SelectVenue to choose.
func ParseVenue(s string) (Venue, error) {
	if s == "" {
		return "", nil
	}
	for _, v := range Venues {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown venue %q", ErrConfiguration, s)
}

// Trusted reports whether the venue runs through the privileged helpers.
func (v Venue) Trusted() bool {
	return v == VenueTrustedLocal || v == VenueTrustedRemote
}

// Remote reports whether the venue ships the tool to a remote resource.
func (v Venue) Remote() bool {
	return v == VenueRemote || v == VenueTrustedRemote
}

// String returns the venue name.
func (v Venue) String() string { return string(v) }

// Selection is the input to SelectVenue.
type Selection struct {
	// Venue is the caller's explicit choice, empty to select.
	Venue Venue

	Tool   Tool
	Remote *backend.RemoteAttributes
	Policy cache.Policy

	// SubmitAvailable reports whether the submission system is present.
	SubmitAvailable bool
}

// SelectVenue picks the venue of a run.
//
// Without an explicit venue: noSubmit when submit is unavailable; with
// remote attributes, trustedRemote for a published tool that caches and
// remote otherwise; without them, trustedLocal for a published tool that
// caches and local otherwise. An unversioned tool never caches.
//
// An explicit venue is checked instead: trusted venues need a published,
// cached tool and remote venues need remote attributes.
func SelectVenue(s Selection) (Venue, error) {
	trusted := s.Tool.Published && s.Policy.ShouldCache(s.Tool.Identity())

	if s.Venue == "" {
		switch {
		case !s.SubmitAvailable:
			return VenueNoSubmit, nil
		case s.Remote != nil && trusted:
			return VenueTrustedRemote, nil
		case s.Remote != nil:
			return VenueRemote, nil
		case trusted:
			return VenueTrustedLocal, nil
		default:
			return VenueLocal, nil
		}
	}

	if _, err := ParseVenue(string(s.Venue)); err != nil {
		return "", err
	}
	if s.Venue.Trusted() && !s.Tool.Published {
		return "", fmt.Errorf("%w: tool %s is not published and cannot run %s", ErrConfiguration, s.Tool.Identity(), s.Venue)
	}
	if s.Venue.Trusted() && !trusted {
		return "", fmt.Errorf("%w: venue %s requires caching", ErrConfiguration, s.Venue)
	}
	if s.Venue.Remote() && s.Remote == nil {
		return "", fmt.Errorf("%w: venue %s requires remote attributes", ErrConfiguration, s.Venue)
	}
	return s.Venue, nil
}
