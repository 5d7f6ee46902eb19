// Package correlate maps directions-provider transit steps onto the transit
// authority's own identifiers: nearest-stop correlation, live vehicle
// selection and signal-freshness classification.
package correlate

import (
	"strings"

	"github.com/mtlrider/stm-live/directions"
	"github.com/mtlrider/stm-live/geo"
	"github.com/mtlrider/stm-live/stm"
)

// MaxStopDistanceMeters is the acceptance threshold for nearest-stop
// correlation: a nearest stop farther than this is treated as a miss.
const MaxStopDistanceMeters = 200.0

// StopMatch is the correlation result for one transit step. Derived data,
// recomputed whenever the candidate itineraries change. A nil StopID is a
// legitimate miss, distinct from "not yet computed".
type StopMatch struct {
	StopID          *int       `json:"stopId,omitempty"`
	Line            string     `json:"line,omitempty"`
	LineDestination *string    `json:"lineDestination,omitempty"`
	DepartureCoord  *geo.Coord `json:"departureCoordinate,omitempty"`
}

// Matcher is the pluggable string-matching strategy used to split a line's
// display name into code and destination, and to match destination text
// between the provider and the live feed. The accuracy of the default
// heuristics is unverified across upstream naming conventions, hence the
// seam.
type Matcher interface {
	// SplitLineDestination extracts the destination segment from a line
	// display name. ok is false when the name carries no destination.
	SplitLineDestination(displayName string) (destination string, ok bool)
	// DestinationMatches reports whether a live vehicle's destination text
	// refers to the wanted destination.
	DestinationMatches(candidate, want string) bool
}

// DefaultMatcher splits on the first " - " delimiter and matches by
// case-sensitive substring containment. Providers label lines with direction
// text ("185 - Sherbrooke Est") that must be separated from the bare code
// the authority API uses; destination text formats vary between feed and
// provider, so containment beats exact equality.
type DefaultMatcher struct{}

func (DefaultMatcher) SplitLineDestination(displayName string) (string, bool) {
	_, dest, found := strings.Cut(displayName, " - ")
	if !found || dest == "" {
		return "", false
	}
	return dest, true
}

func (DefaultMatcher) DestinationMatches(candidate, want string) bool {
	return strings.Contains(candidate, want)
}

// Stop correlates a transit step's departure location with the nearest
// authority stop, accepting the match only within the threshold distance.
func Stop(step directions.Step, stops []stm.AuthorityStop, m Matcher) StopMatch {
	match := StopMatch{}
	if step.Transit == nil {
		return match
	}
	td := step.Transit
	match.Line = td.LineShortName
	if dest, ok := m.SplitLineDestination(td.LineName); ok {
		match.LineDestination = &dest
	}
	departure := td.DepartureStop
	match.DepartureCoord = &departure

	best := -1
	bestDist := 0.0
	for i, stop := range stops {
		d := geo.DistanceMeters(departure, stop.Coord)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best >= 0 && bestDist <= MaxStopDistanceMeters {
		id := stops[best].ID
		match.StopID = &id
	}
	return match
}
