// Package waqi implements the backup combined air-quality and weather
// feed client. It only participates in fusion when the primary
// pollutant feed has no PM2.5.
package waqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/resilience"
)

const (
	// SourceName identifies this feed in reading attributions.
	SourceName = "waqi"

	// DefaultBaseURL is the WAQI API base URL.
	DefaultBaseURL = "https://api.waqi.info"
)

// ErrNoCredential is returned when the client has no token; the fusion
// engine treats this exactly like any other unavailable outcome.
var ErrNoCredential = errors.New("waqi: no token configured")

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// Token is the WAQI API token (required).
	Token string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a WAQI API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a WAQI client.
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
		token:      cfg.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the feed name.
func (c *Client) Name() string {
	return SourceName
}

// FetchCombined fetches both the pollutant and weather subsets for a
// coordinate in one call.
func (c *Client) FetchCombined(ctx context.Context, coord geo.Coordinate) (*fusion.AirSample, *fusion.WeatherSample, error) {
	if c.token == "" {
		return nil, nil, ErrNoCredential
	}

	url := fmt.Sprintf("%s/feed/geo:%.6f;%.6f/?token=%s", c.baseURL, coord.Lat, coord.Lon, c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, nil, fmt.Errorf("decoding response: %w", err)
	}
	if feed.Status != "ok" {
		return nil, nil, fmt.Errorf("feed status %q", feed.Status)
	}

	return c.toSamples(&feed)
}

func (c *Client) toSamples(feed *feedResponse) (*fusion.AirSample, *fusion.WeatherSample, error) {
	iaqi := feed.Data.IAQI

	air := &fusion.AirSample{
		PM25:   iaqi.value("pm25"),
		PM10:   iaqi.value("pm10"),
		NO2:    iaqi.value("no2"),
		O3:     iaqi.value("o3"),
		CO:     iaqi.value("co"),
		Source: SourceName,
	}
	weather := &fusion.WeatherSample{
		Temperature: iaqi.value("t"),
		Humidity:    iaqi.value("h"),
		WindSpeed:   iaqi.value("w"),
		Pressure:    iaqi.value("p"),
		Source:      SourceName,
	}

	return air, weather, nil
}

// WAQI API response structures.

type feedResponse struct {
	Status string `json:"status"`
	Data   struct {
		AQI  int     `json:"aqi"`
		IAQI iaqiMap `json:"iaqi"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
	} `json:"data"`
}

type iaqiMap map[string]struct {
	V float64 `json:"v"`
}

func (m iaqiMap) value(key string) *float64 {
	entry, ok := m[key]
	if !ok {
		return nil
	}
	v := entry.V
	return &v
}
