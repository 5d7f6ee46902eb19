package stm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/mtlrider/stm-live/config"
	"github.com/mtlrider/stm-live/geo"
)

// Metrics is the narrow instrumentation surface the client reports to.
// A nil Metrics disables instrumentation.
type Metrics interface {
	UpstreamErrorInc(endpoint string)
	TokenRefreshInc()
}

// RadiusPolicy is the ordered list of search radii, in meters, tried by
// FindStopsNear before giving up.
type RadiusPolicy []float64

// DefaultRadii retries once at a wider radius when the default search comes
// back empty.
var DefaultRadii = RadiusPolicy{200, 500}

// Client wraps the authority's data endpoints. Data failures (non-2xx,
// transport error, malformed payload) degrade to empty results and are
// logged; only a failed token fetch returns an error.
type Client struct {
	baseURL           string
	vehicleFeedURL    string
	vehicleFeedFormat string
	radii             RadiusPolicy
	tokens            *TokenSource
	httpClient        *http.Client
	validate          *validator.Validate
	log               *zap.Logger
	metrics           Metrics
}

func NewClient(cfg config.STMConfig, tokens *TokenSource, timeout time.Duration, log *zap.Logger, m Metrics) *Client {
	feedURL := cfg.VehicleFeedURL
	if feedURL == "" {
		feedURL = strings.TrimRight(cfg.BaseURL, "/") + "/vehiclepositions"
	}
	return &Client{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		vehicleFeedURL:    feedURL,
		vehicleFeedFormat: cfg.VehicleFeedFormat,
		radii:             DefaultRadii,
		tokens:            tokens,
		httpClient:        &http.Client{Timeout: timeout},
		validate:          validator.New(),
		log:               log,
		metrics:           m,
	}
}

// FindStopsNear returns the authority stops around coord, widening the
// search radius per the policy until something comes back.
func (c *Client) FindStopsNear(ctx context.Context, coord geo.Coord) ([]AuthorityStop, error) {
	for _, radius := range c.radii {
		stops, err := c.findStops(ctx, coord, radius)
		if err != nil {
			return nil, err
		}
		if len(stops) > 0 {
			return stops, nil
		}
	}
	return []AuthorityStop{}, nil
}

func (c *Client) findStops(ctx context.Context, coord geo.Coord, radius float64) ([]AuthorityStop, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lng, 'f', -1, 64))
	q.Set("dist", strconv.FormatFloat(radius, 'f', -1, 64))

	body, err := c.get(ctx, c.baseURL+"/busstops?"+q.Encode(), "busstops")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []AuthorityStop{}, nil
	}

	var payload []stopPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.discard("busstops", fmt.Errorf("decode: %w", err))
		return []AuthorityStop{}, nil
	}
	stops := make([]AuthorityStop, 0, len(payload))
	for _, p := range payload {
		if err := c.validate.Struct(p); err != nil {
			c.discard("busstops", fmt.Errorf("invalid stop record: %w", err))
			return []AuthorityStop{}, nil
		}
		stops = append(stops, AuthorityStop{
			ID:   p.BusStopID,
			Name: p.Name,
			Coord: geo.Coord{
				Lat: p.Location.Coordinates[1],
				Lng: p.Location.Coordinates[0],
			},
		})
	}
	return stops, nil
}

// UpcomingBuses returns schedule-based arrivals at a stop for the given
// lines, capped at limit when limit > 0.
func (c *Client) UpcomingBuses(ctx context.Context, stopID int, lines []string, limit int) ([]UpcomingBus, error) {
	q := url.Values{}
	q.Set("lines", strings.Join(lines, ","))

	endpoint := fmt.Sprintf("%s/busstops/%d/upcomingbuses?%s", c.baseURL, stopID, q.Encode())
	body, err := c.get(ctx, endpoint, "upcomingbuses")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []UpcomingBus{}, nil
	}

	var payload []upcomingBusPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.discard("upcomingbuses", fmt.Errorf("decode: %w", err))
		return []UpcomingBus{}, nil
	}
	buses := make([]UpcomingBus, 0, len(payload))
	for _, p := range payload {
		if err := c.validate.Struct(p); err != nil {
			c.discard("upcomingbuses", fmt.Errorf("invalid arrival record: %w", err))
			return []UpcomingBus{}, nil
		}
		minutes := p.ArrivalTime
		if len(p.Arribos) > 0 {
			minutes = p.Arribos[0].ArrivalTime
		}
		buses = append(buses, UpcomingBus{
			Line:           p.Line,
			Destination:    p.Destination,
			ArrivalMinutes: minutes,
		})
	}
	if limit > 0 && len(buses) > limit {
		buses = buses[:limit]
	}
	return buses, nil
}

// VehiclePositions returns live reports for the given lines. The feed is
// decoded per the configured format: the authority serves both a JSON shape
// and a GTFS-RT protobuf FeedMessage.
func (c *Client) VehiclePositions(ctx context.Context, lines []string) ([]LiveVehicle, error) {
	if c.vehicleFeedFormat == "gtfsrt" {
		return c.vehiclePositionsGTFSRT(ctx, lines)
	}
	return c.vehiclePositionsJSON(ctx, lines)
}

func (c *Client) vehiclePositionsJSON(ctx context.Context, lines []string) ([]LiveVehicle, error) {
	q := url.Values{}
	q.Set("lines", strings.Join(lines, ","))

	body, err := c.get(ctx, c.vehicleFeedURL+"?"+q.Encode(), "vehiclepositions")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []LiveVehicle{}, nil
	}

	var payload []vehiclePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.discard("vehiclepositions", fmt.Errorf("decode: %w", err))
		return []LiveVehicle{}, nil
	}
	vehicles := make([]LiveVehicle, 0, len(payload))
	for _, p := range payload {
		if err := c.validate.Struct(p); err != nil {
			c.discard("vehiclepositions", fmt.Errorf("invalid vehicle record: %w", err))
			return []LiveVehicle{}, nil
		}
		v := LiveVehicle{
			Line:            p.Line,
			VehicleID:       p.ID,
			DestinationText: p.Destination,
			Coord: geo.Coord{
				Lat: p.Location.Coordinates[1],
				Lng: p.Location.Coordinates[0],
			},
		}
		if p.Timestamp > 0 {
			ts := time.Unix(p.Timestamp, 0).UTC()
			v.Timestamp = &ts
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

func (c *Client) vehiclePositionsGTFSRT(ctx context.Context, lines []string) ([]LiveVehicle, error) {
	body, err := c.get(ctx, c.vehicleFeedURL, "vehiclepositions")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []LiveVehicle{}, nil
	}

	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(body, &fm); err != nil {
		c.discard("vehiclepositions", fmt.Errorf("decode protobuf: %w", err))
		return []LiveVehicle{}, nil
	}

	wanted := map[string]bool{}
	for _, l := range lines {
		wanted[l] = true
	}

	vehicles := []LiveVehicle{}
	for _, ent := range fm.GetEntity() {
		vp := ent.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		line := vp.GetTrip().GetRouteId()
		if len(wanted) > 0 && !wanted[line] {
			continue
		}
		v := LiveVehicle{
			Line:      line,
			VehicleID: vp.GetVehicle().GetId(),
			Coord: geo.Coord{
				Lat: float64(vp.GetPosition().GetLatitude()),
				Lng: float64(vp.GetPosition().GetLongitude()),
			},
			// The RT feed has no headsign field; the vehicle label is the
			// closest destination text it carries.
			DestinationText: vp.GetVehicle().GetLabel(),
		}
		if ts := vp.GetTimestamp(); ts > 0 {
			t := time.Unix(int64(ts), 0).UTC()
			v.Timestamp = &t
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// get performs a bearer-authenticated GET. It returns (nil, nil) on any data
// failure so callers can degrade to an empty result; the only error returned
// is a failed token fetch.
func (c *Client) get(ctx context.Context, endpoint, name string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return nil, &AuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.discard(name, err)
		return nil, nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.discard(name, err)
		return nil, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.discard(name, fmt.Errorf("HTTP %d", resp.StatusCode))
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.discard(name, err)
		return nil, nil
	}
	return body, nil
}

func (c *Client) discard(endpoint string, err error) {
	c.log.Warn("upstream data unavailable",
		zap.String("endpoint", endpoint),
		zap.Error(err),
	)
	if c.metrics != nil {
		c.metrics.UpstreamErrorInc(endpoint)
	}
}
