// Package openaq implements the primary air-quality feed client.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/resilience"
)

const (
	// SourceName identifies this feed in reading attributions.
	SourceName = "openaq"

	// DefaultBaseURL is the OpenAQ API base URL.
	DefaultBaseURL = "https://api.openaq.org/v2"

	// defaultRadiusMeters is the station search radius around the query
	// coordinate.
	defaultRadiusMeters = 25000

	// defaultStationLimit caps how many stations feed the average.
	defaultStationLimit = 5
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// APIKey is the OpenAQ API key (optional; raises rate limits).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenAQ API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates an OpenAQ client.
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

// FetchAir fetches the latest pollutant measurements near a coordinate,
// averaging each parameter across the reporting stations.
func (c *Client) FetchAir(ctx context.Context, coord geo.Coordinate) (*fusion.AirSample, error) {
	url := fmt.Sprintf("%s/latest?coordinates=%.6f,%.6f&radius=%d&limit=%d",
		c.baseURL, coord.Lat, coord.Lon, defaultRadiusMeters, defaultStationLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var latest latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return c.toSample(&latest), nil
}

// toSample averages per-parameter measurements across stations.
func (c *Client) toSample(resp *latestResponse) *fusion.AirSample {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	stations := 0

	for _, loc := range resp.Results {
		stations++
		for _, m := range loc.Measurements {
			if m.Value < 0 {
				continue
			}
			sums[m.Parameter] += m.Value
			counts[m.Parameter]++
		}
	}

	avg := func(param string) *float64 {
		n := counts[param]
		if n == 0 {
			return nil
		}
		v := sums[param] / float64(n)
		return &v
	}

	return &fusion.AirSample{
		PM25:         avg("pm25"),
		PM10:         avg("pm10"),
		NO2:          avg("no2"),
		O3:           avg("o3"),
		CO:           avg("co"),
		Source:       SourceName,
		StationCount: stations,
	}
}

// OpenAQ API response structures.

type latestResponse struct {
	Results []struct {
		Location     string `json:"location"`
		Measurements []struct {
			Parameter   string  `json:"parameter"`
			Value       float64 `json:"value"`
			Unit        string  `json:"unit"`
			LastUpdated string  `json:"lastUpdated"`
		} `json:"measurements"`
	} `json:"results"`
}
