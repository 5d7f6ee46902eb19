package stmlive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/config"
	"github.com/mtlrider/stm-live/directions"
	"github.com/mtlrider/stm-live/geo"
	"github.com/mtlrider/stm-live/metrics"
	"github.com/mtlrider/stm-live/poll"
	"github.com/mtlrider/stm-live/stm"
)

type fakeRoutes struct {
	resp *directions.RoutesResponse
	err  error
	eta  *int
}

func (f *fakeRoutes) ComputeRoutes(ctx context.Context, origin, destination string) (*directions.RoutesResponse, error) {
	return f.resp, f.err
}

func (f *fakeRoutes) EstimateETA(ctx context.Context, from, to geo.Coord) *int { return f.eta }

type stubAuthority struct {
	stops []stm.AuthorityStop
}

func (s *stubAuthority) FindStopsNear(ctx context.Context, coord geo.Coord) ([]stm.AuthorityStop, error) {
	return s.stops, nil
}

func (s *stubAuthority) UpcomingBuses(ctx context.Context, stopID int, lines []string, limit int) ([]stm.UpcomingBus, error) {
	return []stm.UpcomingBus{{Line: "185", Destination: "Sherbrooke Est", ArrivalMinutes: 6}}, nil
}

func (s *stubAuthority) VehiclePositions(ctx context.Context, lines []string) ([]stm.LiveVehicle, error) {
	return nil, nil
}

type stubEstimator struct{}

func (stubEstimator) EstimateETA(ctx context.Context, from, to geo.Coord) *int { return nil }

func newTestServer(t *testing.T, routes DirectionsAPI) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{}
	cfg.Server.Port = 0
	cfg.Server.Env = "test"

	departure := geo.Coord{Lat: 45.5017, Lng: -73.5673}
	authority := &stubAuthority{
		stops: []stm.AuthorityStop{{ID: 2988, Coord: geo.Coord{Lat: departure.Lat + 50/111195.0, Lng: departure.Lng}}},
	}
	registry := poll.NewRegistry(authority, stubEstimator{}, time.Hour, zap.NewNop(), nil)
	t.Cleanup(registry.CancelAll)

	return NewServer(cfg, zap.NewNop(), metrics.NewCollector(), routes, registry)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleRoutesResponse() *directions.RoutesResponse {
	raw := `{
		"routes": [{
			"distanceMeters": 5200,
			"duration": "1800s",
			"legs": [{
				"distanceMeters": 5200,
				"staticDuration": "1800s",
				"steps": [{
					"travelMode": "TRANSIT",
					"distanceMeters": 4800,
					"staticDuration": "1500s",
					"transitDetails": {
						"stopDetails": {
							"departureStop": {"name": "Sherbrooke / Honore-Beaugrand", "location": {"latLng": {"latitude": 45.5017, "longitude": -73.5673}}},
							"arrivalStop": {"name": "Sherbrooke / Pie-IX", "location": {"latLng": {"latitude": 45.553, "longitude": -73.552}}}
						},
						"headsign": "Sherbrooke Est",
						"transitLine": {"name": "185 - Sherbrooke Est", "nameShort": "185"},
						"stopCount": 12
					}
				}]
			}]
		}]
	}`
	var resp directions.RoutesResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		panic(err)
	}
	return &resp
}

func TestHandleDirections(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{resp: sampleRoutesResponse()})
	r := s.router()

	for _, path := range []string{"/api/directions", "/api/routes"} {
		rec := doJSON(t, r, http.MethodPost, path, gin.H{"origin": "Old Port, Montreal", "destination": "Olympic Stadium"})
		require.Equal(t, http.StatusOK, rec.Code, path)

		var resp directionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Routes, 1)
		require.Len(t, resp.Routes[0].Legs, 1)
		step := resp.Routes[0].Legs[0].Steps[0]
		require.NotNil(t, step.Transit)
		assert.Equal(t, "185", step.Transit.LineShortName)
	}
}

func TestHandleDirectionsRejectsMissingFields(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{resp: sampleRoutesResponse()})
	rec := doJSON(t, s.router(), http.MethodPost, "/api/directions", gin.H{"origin": "Old Port, Montreal"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDirectionsProviderFailure(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{err: fmt.Errorf("routes status 500")})
	rec := doJSON(t, s.router(), http.MethodPost, "/api/directions", gin.H{"origin": "a", "destination": "b"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleETA(t *testing.T) {
	eta := 420
	s := newTestServer(t, &fakeRoutes{eta: &eta})
	rec := doJSON(t, s.router(), http.MethodPost, "/api/eta", gin.H{
		"busLocation":  gin.H{"lat": 45.50, "lng": -73.57},
		"stopLocation": gin.H{"lat": 45.55, "lng": -73.55},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ETA *int `json:"eta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.ETA)
	assert.Equal(t, 420, *resp.ETA)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{resp: sampleRoutesResponse()})
	r := s.router()

	itinerary := directions.Translate(*sampleRoutesResponse())[0]
	rec := doJSON(t, r, http.MethodPost, "/api/sessions", itinerary)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)

	arrivalsPath := "/api/sessions/" + created.SessionID + "/arrivals"
	require.Eventually(t, func() bool {
		return doJSON(t, r, http.MethodGet, arrivalsPath, nil).Code == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	rec = doJSON(t, r, http.MethodGet, arrivalsPath, nil)
	var snap poll.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Steps, 1)
	require.NotNil(t, snap.Steps[0].Match.StopID)
	assert.Equal(t, 2988, *snap.Steps[0].Match.StopID)
	// No live vehicle from the stub, so the schedule fallback carries.
	require.Len(t, snap.Steps[0].Scheduled, 1)

	rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, arrivalsPath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionRejectsEmptyItinerary(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{})
	rec := doJSON(t, s.router(), http.MethodPost, "/api/sessions", directions.Itinerary{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{})
	rec := doJSON(t, s.router(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeRoutes{})
	rec := doJSON(t, s.router(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stmlive_")
}
