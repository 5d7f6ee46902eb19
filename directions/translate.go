package directions

import (
	"strconv"
	"strings"

	"github.com/mtlrider/stm-live/polyline"
)

// Translate converts a raw provider response into internal itineraries.
// It is pure: no network, no side effects. Routes with no legs are dropped
// rather than treated as errors, and absent transit fields default to empty.
func Translate(resp RoutesResponse) []Itinerary {
	itineraries := make([]Itinerary, 0, len(resp.Routes))
	for _, route := range resp.Routes {
		if len(route.Legs) == 0 {
			continue
		}
		it := Itinerary{
			Legs:           make([]Leg, 0, len(route.Legs)),
			DistanceMeters: route.DistanceMeters,
		}
		if d := parseDurationSeconds(route.Duration); d > 0 {
			it.DurationSeconds = d
		} else {
			it.DurationSeconds = parseDurationSeconds(route.StaticDuration)
		}
		for _, leg := range route.Legs {
			it.Legs = append(it.Legs, translateLeg(leg))
		}
		itineraries = append(itineraries, it)
	}
	return itineraries
}

func translateLeg(raw RawLeg) Leg {
	leg := Leg{
		StartAddress:    raw.StartAddress,
		EndAddress:      raw.EndAddress,
		Start:           raw.StartLocation.coord(),
		End:             raw.EndLocation.coord(),
		DistanceMeters:  raw.DistanceMeters,
		DurationSeconds: parseDurationSeconds(raw.StaticDuration),
		Steps:           make([]Step, 0, len(raw.Steps)),
	}
	for _, s := range raw.Steps {
		leg.Steps = append(leg.Steps, translateStep(s))
	}
	return leg
}

func translateStep(raw RawStep) Step {
	step := Step{
		Mode:            mapTravelMode(raw.TravelMode),
		DistanceMeters:  raw.DistanceMeters,
		DurationSeconds: parseDurationSeconds(raw.StaticDuration),
		Path:            polyline.Decode(raw.Polyline.EncodedPolyline),
	}
	if raw.TransitDetails != nil {
		td := raw.TransitDetails
		step.Transit = &TransitDetail{
			LineName:           td.TransitLine.Name,
			LineShortName:      td.TransitLine.NameShort,
			LineColor:          td.TransitLine.Color,
			Headsign:           td.Headsign,
			DepartureStopName:  td.StopDetails.DepartureStop.Name,
			DepartureStop:      td.StopDetails.DepartureStop.Location.coord(),
			ArrivalStopName:    td.StopDetails.ArrivalStop.Name,
			ArrivalStop:        td.StopDetails.ArrivalStop.Location.coord(),
			ScheduledDeparture: td.StopDetails.DepartureTime,
			ScheduledArrival:   td.StopDetails.ArrivalTime,
			StopCount:          td.StopCount,
		}
	}
	return step
}

// mapTravelMode remaps the provider enum: WALK becomes WALKING, everything
// else rides a transit line.
func mapTravelMode(mode string) TravelMode {
	if mode == "WALK" {
		return ModeWalking
	}
	return ModeTransit
}

// parseDurationSeconds parses the provider's duration strings ("96s").
// Anything unparseable yields zero.
func parseDurationSeconds(s string) int {
	s = strings.TrimSuffix(s, "s")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
