// Package directions consumes the multimodal directions provider: it fetches
// raw routes/legs/steps payloads and translates them into the stable internal
// itinerary shape the rest of the engine works with.
package directions

import "github.com/mtlrider/stm-live/geo"

// TravelMode is the internal mode enum after remapping the provider's.
type TravelMode string

const (
	ModeWalking TravelMode = "WALKING"
	ModeTransit TravelMode = "TRANSIT"
)

// Itinerary is one candidate trip. Built once per provider response and
// never mutated afterwards.
type Itinerary struct {
	Legs            []Leg `json:"legs"`
	DistanceMeters  int   `json:"distanceMeters"`
	DurationSeconds int   `json:"durationSeconds"`
}

type Leg struct {
	StartAddress    string    `json:"startAddress"`
	EndAddress      string    `json:"endAddress"`
	Start           geo.Coord `json:"start"`
	End             geo.Coord `json:"end"`
	DistanceMeters  int       `json:"distanceMeters"`
	DurationSeconds int       `json:"durationSeconds"`
	Steps           []Step    `json:"steps"`
}

type Step struct {
	Mode            TravelMode     `json:"mode"`
	DistanceMeters  int            `json:"distanceMeters"`
	DurationSeconds int            `json:"durationSeconds"`
	Path            []geo.Coord    `json:"path"`
	Transit         *TransitDetail `json:"transit,omitempty"`
}

// TransitDetail carries the provider's transit metadata for a step.
// Scheduled times stay as the provider's strings; absent fields are empty
// rather than failing the translation.
type TransitDetail struct {
	LineName           string    `json:"lineName"`
	LineShortName      string    `json:"lineShortName"`
	LineColor          string    `json:"lineColor"`
	Headsign           string    `json:"headsign"`
	DepartureStopName  string    `json:"departureStopName"`
	DepartureStop      geo.Coord `json:"departureStop"`
	ArrivalStopName    string    `json:"arrivalStopName"`
	ArrivalStop        geo.Coord `json:"arrivalStop"`
	ScheduledDeparture string    `json:"scheduledDeparture"`
	ScheduledArrival   string    `json:"scheduledArrival"`
	StopCount          int       `json:"stopCount"`
}

// Raw provider payload shapes (Routes API style).

type RoutesResponse struct {
	Routes []RawRoute `json:"routes"`
}

type RawRoute struct {
	Legs           []RawLeg `json:"legs"`
	DistanceMeters int      `json:"distanceMeters"`
	Duration       string   `json:"duration"`
	StaticDuration string   `json:"staticDuration"`
}

type RawLeg struct {
	Steps          []RawStep   `json:"steps"`
	DistanceMeters int         `json:"distanceMeters"`
	StaticDuration string      `json:"staticDuration"`
	StartLocation  RawLocation `json:"startLocation"`
	EndLocation    RawLocation `json:"endLocation"`
	StartAddress   string      `json:"startAddress"`
	EndAddress     string      `json:"endAddress"`
}

type RawStep struct {
	DistanceMeters int    `json:"distanceMeters"`
	StaticDuration string `json:"staticDuration"`
	Polyline       struct {
		EncodedPolyline string `json:"encodedPolyline"`
	} `json:"polyline"`
	StartLocation  RawLocation        `json:"startLocation"`
	EndLocation    RawLocation        `json:"endLocation"`
	TravelMode     string             `json:"travelMode"`
	TransitDetails *RawTransitDetails `json:"transitDetails"`
}

type RawLocation struct {
	LatLng struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"latLng"`
}

func (l RawLocation) coord() geo.Coord {
	return geo.Coord{Lat: l.LatLng.Latitude, Lng: l.LatLng.Longitude}
}

type RawTransitDetails struct {
	StopDetails struct {
		ArrivalStop   RawTransitStop `json:"arrivalStop"`
		DepartureStop RawTransitStop `json:"departureStop"`
		ArrivalTime   string         `json:"arrivalTime"`
		DepartureTime string         `json:"departureTime"`
	} `json:"stopDetails"`
	Headsign    string `json:"headsign"`
	TransitLine struct {
		Name      string `json:"name"`
		NameShort string `json:"nameShort"`
		Color     string `json:"color"`
		Vehicle   struct {
			Type string `json:"type"`
		} `json:"vehicle"`
	} `json:"transitLine"`
	StopCount int `json:"stopCount"`
}

type RawTransitStop struct {
	Name     string      `json:"name"`
	Location RawLocation `json:"location"`
}
