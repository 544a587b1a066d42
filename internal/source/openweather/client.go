// Package openweather implements the primary weather feed client.
package openweather

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
	SourceName = "openweather"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ErrNoCredential is returned when the client has no API key.
var ErrNoCredential = errors.New("openweather: no API key configured")

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates an OpenWeatherMap client.
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

// FetchWeather fetches current weather attributes for a coordinate.
func (c *Client) FetchWeather(ctx context.Context, coord geo.Coordinate) (*fusion.WeatherSample, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredential
	}

	url := fmt.Sprintf("%s/weather?lat=%.6f&lon=%.6f&appid=%s&units=metric",
		c.baseURL, coord.Lat, coord.Lon, c.apiKey)

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

	var owm currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&owm); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &fusion.WeatherSample{
		Temperature:   &owm.Main.Temp,
		Humidity:      &owm.Main.Humidity,
		WindSpeed:     &owm.Wind.Speed,
		WindDirection: &owm.Wind.Deg,
		Pressure:      &owm.Main.Pressure,
		Source:        SourceName,
	}, nil
}

// OpenWeatherMap API response structures.

type currentWeatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
}
