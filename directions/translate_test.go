package directions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "routes": [
    {
      "distanceMeters": 5210,
      "duration": "1980s",
      "legs": [
        {
          "distanceMeters": 5210,
          "staticDuration": "1980s",
          "startLocation": {"latLng": {"latitude": 45.5017, "longitude": -73.5673}},
          "endLocation": {"latLng": {"latitude": 45.5245, "longitude": -73.5817}},
          "steps": [
            {
              "distanceMeters": 120,
              "staticDuration": "96s",
              "travelMode": "WALK",
              "polyline": {"encodedPolyline": "_p~iF~ps|U_ulLnnqC"},
              "startLocation": {"latLng": {"latitude": 45.5017, "longitude": -73.5673}},
              "endLocation": {"latLng": {"latitude": 45.5021, "longitude": -73.568}}
            },
            {
              "distanceMeters": 4800,
              "staticDuration": "1500s",
              "travelMode": "TRANSIT",
              "polyline": {"encodedPolyline": ""},
              "startLocation": {"latLng": {"latitude": 45.5021, "longitude": -73.568}},
              "endLocation": {"latLng": {"latitude": 45.5245, "longitude": -73.5817}},
              "transitDetails": {
                "headsign": "Nord",
                "stopCount": 11,
                "transitLine": {
                  "name": "185 - Sherbrooke Est",
                  "nameShort": "185",
                  "color": "#009ee0",
                  "vehicle": {"type": "BUS"}
                },
                "stopDetails": {
                  "departureStop": {
                    "name": "Sherbrooke / Saint-Denis",
                    "location": {"latLng": {"latitude": 45.5178, "longitude": -73.5692}}
                  },
                  "arrivalStop": {
                    "name": "Mont-Royal / Saint-Denis",
                    "location": {"latLng": {"latitude": 45.5245, "longitude": -73.5817}}
                  },
                  "departureTime": "2026-08-30T14:05:00Z"
                }
              }
            }
          ]
        }
      ]
    },
    {"legs": [], "distanceMeters": 0}
  ]
}`

func decodeSample(t *testing.T) RoutesResponse {
	t.Helper()
	var resp RoutesResponse
	require.NoError(t, json.Unmarshal([]byte(sampleResponse), &resp))
	return resp
}

func TestTranslate_DropsRoutesWithoutLegs(t *testing.T) {
	itineraries := Translate(decodeSample(t))

	require.Len(t, itineraries, 1, "leg-less route must be dropped, not error")
}

func TestTranslate_WalkStep(t *testing.T) {
	itineraries := Translate(decodeSample(t))
	require.Len(t, itineraries, 1)
	require.Len(t, itineraries[0].Legs, 1)
	leg := itineraries[0].Legs[0]
	require.Len(t, leg.Steps, 2)

	walk := leg.Steps[0]
	assert.Equal(t, ModeWalking, walk.Mode)
	assert.Equal(t, 120, walk.DistanceMeters)
	assert.Equal(t, 96, walk.DurationSeconds)
	require.Len(t, walk.Path, 2)
	assert.InDelta(t, 38.5, walk.Path[0].Lat, 1e-5)
	assert.Nil(t, walk.Transit)
}

func TestTranslate_TransitStep(t *testing.T) {
	itineraries := Translate(decodeSample(t))
	transit := itineraries[0].Legs[0].Steps[1]

	assert.Equal(t, ModeTransit, transit.Mode)
	assert.Empty(t, transit.Path, "empty polyline decodes to an empty path")
	require.NotNil(t, transit.Transit)
	td := transit.Transit
	assert.Equal(t, "185 - Sherbrooke Est", td.LineName)
	assert.Equal(t, "185", td.LineShortName)
	assert.Equal(t, "Nord", td.Headsign)
	assert.Equal(t, "Sherbrooke / Saint-Denis", td.DepartureStopName)
	assert.InDelta(t, 45.5178, td.DepartureStop.Lat, 1e-9)
	assert.Equal(t, 11, td.StopCount)
	assert.Equal(t, "2026-08-30T14:05:00Z", td.ScheduledDeparture)
	assert.Empty(t, td.ScheduledArrival, "absent scheduled time defaults to empty")
}

func TestTranslate_EmptyResponse(t *testing.T) {
	assert.Empty(t, Translate(RoutesResponse{}))
}

func TestMapTravelMode(t *testing.T) {
	assert.Equal(t, ModeWalking, mapTravelMode("WALK"))
	assert.Equal(t, ModeTransit, mapTravelMode("TRANSIT"))
	assert.Equal(t, ModeTransit, mapTravelMode("BUS"))
}

func TestParseDurationSeconds(t *testing.T) {
	assert.Equal(t, 96, parseDurationSeconds("96s"))
	assert.Equal(t, 0, parseDurationSeconds(""))
	assert.Equal(t, 0, parseDurationSeconds("abc"))
	assert.Equal(t, 0, parseDurationSeconds("-5s"))
}
