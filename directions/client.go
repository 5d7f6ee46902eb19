package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/config"
	"github.com/mtlrider/stm-live/geo"
)

const defaultBaseURL = "https://routes.googleapis.com"

// field masks keep the provider responses down to what the translator and
// estimator actually read.
const (
	routesFieldMask = "routes.legs,routes.distanceMeters,routes.duration,routes.staticDuration"
	etaFieldMask    = "routes.duration,routes.staticDuration"
)

// Metrics is the narrow instrumentation surface for provider calls.
type Metrics interface {
	UpstreamErrorInc(endpoint string)
}

// Client calls the directions provider's computeRoutes endpoint, both for
// full transit itineraries and for the traffic-aware point-to-point call the
// ETA estimator rides on.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
	metrics    Metrics
}

func NewClient(cfg config.DirectionsConfig, timeout time.Duration, log *zap.Logger, m Metrics) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		metrics:    m,
	}
}

// ComputeRoutes requests transit itineraries between two addresses. Unlike
// the live-data paths, a failure here is user-visible: the search simply did
// not happen, so the caller gets an error to surface.
func (c *Client) ComputeRoutes(ctx context.Context, origin, destination string) (*RoutesResponse, error) {
	body := map[string]any{
		"origin":                   map[string]string{"address": origin},
		"destination":              map[string]string{"address": destination},
		"travelMode":               "TRANSIT",
		"computeAlternativeRoutes": true,
	}
	var resp RoutesResponse
	if err := c.post(ctx, body, routesFieldMask, &resp); err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamErrorInc("directions")
		}
		return nil, fmt.Errorf("compute routes: %w", err)
	}
	return &resp, nil
}

// EstimateETA requests a traffic-aware drive time between two coordinates
// with depart-now semantics, preferring the traffic-adjusted duration and
// falling back to the static one. An estimate is advisory: any upstream
// problem yields nil, never an error.
func (c *Client) EstimateETA(ctx context.Context, from, to geo.Coord) *int {
	body := map[string]any{
		"origin":            waypoint(from),
		"destination":       waypoint(to),
		"travelMode":        "DRIVE",
		"routingPreference": "TRAFFIC_AWARE",
	}
	var resp RoutesResponse
	if err := c.post(ctx, body, etaFieldMask, &resp); err != nil {
		c.log.Warn("eta estimate unavailable", zap.Error(err))
		if c.metrics != nil {
			c.metrics.UpstreamErrorInc("eta")
		}
		return nil
	}
	if len(resp.Routes) == 0 {
		c.log.Warn("eta estimate unavailable", zap.String("cause", "no routes in response"))
		if c.metrics != nil {
			c.metrics.UpstreamErrorInc("eta")
		}
		return nil
	}
	route := resp.Routes[0]
	if secs := parseDurationSeconds(route.Duration); secs > 0 {
		return &secs
	}
	if secs := parseDurationSeconds(route.StaticDuration); secs > 0 {
		return &secs
	}
	return nil
}

func (c *Client) post(ctx context.Context, body any, fieldMask string, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + "/directions/v2:computeRoutes"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d from directions provider", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

func waypoint(c geo.Coord) map[string]any {
	return map[string]any{
		"location": map[string]any{
			"latLng": map[string]float64{
				"latitude":  c.Lat,
				"longitude": c.Lng,
			},
		},
	}
}
