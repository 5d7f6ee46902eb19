// Package stm is a typed client for the transit authority's machine-to-
// machine API: stop registry lookup, schedule-based upcoming buses, and the
// live vehicle-position feed, behind a cached client-credentials token.
package stm

import (
	"time"

	"github.com/mtlrider/stm-live/geo"
)

// AuthorityStop is a stop record from the authority's own registry.
type AuthorityStop struct {
	ID    int       `json:"id"`
	Name  string    `json:"name"`
	Coord geo.Coord `json:"coordinate"`
}

// UpcomingBus is one schedule-based arrival at a stop, used as fallback
// display when no live vehicle is available.
type UpcomingBus struct {
	Line           string `json:"line"`
	Destination    string `json:"destination"`
	ArrivalMinutes int    `json:"arrivalMinutes"`
}

// LiveVehicle is one live position report. It is transient: the feed is the
// sole source of truth and reports never outlive the poll pass that fetched
// them. A nil Timestamp means the feed did not report one.
type LiveVehicle struct {
	Line            string     `json:"line"`
	VehicleID       string     `json:"vehicleId"`
	Coord           geo.Coord  `json:"coordinate"`
	DestinationText string     `json:"destinationText"`
	Timestamp       *time.Time `json:"timestampUtc,omitempty"`
}

// Raw payload shapes, validated at the boundary. A payload that fails
// validation is treated as unavailable data, not an error.

type stopPayload struct {
	BusStopID int    `json:"busstopId" validate:"required"`
	Name      string `json:"name"`
	Location  struct {
		// GeoJSON order: [lng, lat]
		Coordinates []float64 `json:"coordinates" validate:"len=2"`
	} `json:"location"`
}

type upcomingBusPayload struct {
	Line        string `json:"line" validate:"required"`
	Destination string `json:"destination"`
	Arribos     []struct {
		ArrivalTime int  `json:"arrivalTime"`
		IsReal      bool `json:"isReal"`
	} `json:"arribos"`
	ArrivalTime int `json:"arrivalTime"`
}

type vehiclePayload struct {
	ID          string `json:"id" validate:"required"`
	Line        string `json:"line" validate:"required"`
	Destination string `json:"destination"`
	Location    struct {
		Coordinates []float64 `json:"coordinates" validate:"len=2"`
	} `json:"location"`
	Timestamp int64 `json:"timestamp"`
}
