// Package firms implements the fire proximity feed client, backed by
// the NASA FIRMS area API.
package firms

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/resilience"
)

const (
	// SourceName identifies this feed in reading attributions.
	SourceName = "firms"

	// DefaultBaseURL is the FIRMS area CSV API base URL.
	DefaultBaseURL = "https://firms.modaps.eosdis.nasa.gov/api/area/csv"

	// defaultSatellite is the detection product queried.
	defaultSatellite = "VIIRS_SNPP_NRT"

	// defaultDayRange is how many days of detections to pull.
	defaultDayRange = 1

	// degreesPerKm approximates the bounding box half-width per km.
	degreesPerKm = 1.0 / 111.0
)

// ClientConfig holds configuration for the FIRMS client.
type ClientConfig struct {
	// APIKey is the FIRMS map key. Without one the client reports no
	// fires rather than failing, matching the feed's optional role.
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a FIRMS area API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a FIRMS client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(SourceName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the feed name.
func (c *Client) Name() string {
	return SourceName
}

// FetchFires returns active fire detections within radiusKm of the
// coordinate. The API is queried with a bounding box; results are then
// filtered by great-circle distance. No credential means no detections,
// not an error.
func (c *Client) FetchFires(ctx context.Context, coord geo.Coordinate, radiusKm float64) ([]fusion.FireEvent, error) {
	if c.apiKey == "" {
		return []fusion.FireEvent{}, nil
	}

	half := radiusKm * degreesPerKm
	url := fmt.Sprintf("%s/%s/%s/%.4f,%.4f,%.4f,%.4f/%d",
		c.baseURL, c.apiKey, defaultSatellite,
		coord.Lon-half, coord.Lat-half, coord.Lon+half, coord.Lat+half,
		defaultDayRange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return c.parseDetections(resp.Body, coord, radiusKm)
}

// parseDetections reads the CSV detection rows, keeping those inside
// the radius. Malformed rows are skipped.
func (c *Client) parseDetections(r io.Reader, center geo.Coordinate, radiusKm float64) ([]fusion.FireEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return []fusion.FireEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	latCol, lonCol, frpCol := -1, -1, -1
	for i, name := range header {
		switch name {
		case "latitude":
			latCol = i
		case "longitude":
			lonCol = i
		case "frp":
			frpCol = i
		}
	}
	if latCol < 0 || lonCol < 0 {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	events := []fusion.FireEvent{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.logger.Debug().Err(err).Msg("skipping malformed detection row")
			continue
		}
		if len(row) <= latCol || len(row) <= lonCol {
			continue
		}

		lat, latErr := strconv.ParseFloat(row[latCol], 64)
		lon, lonErr := strconv.ParseFloat(row[lonCol], 64)
		if latErr != nil || lonErr != nil {
			continue
		}

		point := geo.Coordinate{Lat: lat, Lon: lon}
		dist := geo.Distance(center, point)
		if dist > radiusKm {
			continue
		}

		intensity := 0.0
		if frpCol >= 0 && len(row) > frpCol {
			intensity, _ = strconv.ParseFloat(row[frpCol], 64)
		}

		events = append(events, fusion.FireEvent{
			Point:      point,
			DistanceKm: dist,
			Intensity:  intensity,
		})
	}

	return events, nil
}
