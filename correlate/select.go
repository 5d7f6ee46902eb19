package correlate

import (
	"time"

	"github.com/mtlrider/stm-live/geo"
	"github.com/mtlrider/stm-live/stm"
)

// Freshness is the qualitative trust bucket for a live signal. A three-tier
// bucket rather than a continuous confidence score: it is what the UI shows
// riders.
type Freshness string

const (
	FreshnessFresh Freshness = "fresh"
	FreshnessAging Freshness = "aging"
	FreshnessStale Freshness = "stale"
)

const (
	freshMaxAge = 60 * time.Second
	agingMaxAge = 120 * time.Second
)

// ClassifyFreshness buckets a signal age: under 60s fresh, 60-120s aging,
// beyond that or unknown stale.
func ClassifyFreshness(age *time.Duration) Freshness {
	switch {
	case age == nil:
		return FreshnessStale
	case *age < freshMaxAge:
		return FreshnessFresh
	case *age <= agingMaxAge:
		return FreshnessAging
	default:
		return FreshnessStale
	}
}

// SelectVehicle picks the most relevant live vehicle for a stop: candidates
// on the wanted line whose destination text matches (when a destination is
// given), nearest to the target stop. Returns nil when nothing qualifies.
func SelectVehicle(candidates []stm.LiveVehicle, line string, destination *string, target geo.Coord, m Matcher) *stm.LiveVehicle {
	var best *stm.LiveVehicle
	bestDist := 0.0
	for i := range candidates {
		c := &candidates[i]
		if c.Line != line {
			continue
		}
		if destination != nil && !m.DestinationMatches(c.DestinationText, *destination) {
			continue
		}
		d := geo.DistanceMeters(c.Coord, target)
		if best == nil || d < bestDist {
			best = c
			bestDist = d
		}
	}
	if best == nil {
		return nil
	}
	v := *best
	return &v
}

// SignalAge returns the age of a vehicle's report relative to now, or nil
// when the feed reported no timestamp.
func SignalAge(v *stm.LiveVehicle, now time.Time) *time.Duration {
	if v == nil || v.Timestamp == nil {
		return nil
	}
	age := now.Sub(*v.Timestamp)
	return &age
}
