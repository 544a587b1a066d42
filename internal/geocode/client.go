// Package geocode resolves display names for coordinates. Lookups are
// best effort: callers substitute a fallback label on any failure.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/resilience"
)

const (
	// SourceName identifies the geocoder for health tracking.
	SourceName = "nominatim"

	// DefaultBaseURL is the Nominatim reverse endpoint.
	DefaultBaseURL = "https://nominatim.openstreetmap.org/reverse"

	// userAgent is required by the Nominatim usage policy.
	userAgent = "airlens/1.0"
)

// ClientConfig holds configuration for the reverse geocoder.
type ClientConfig struct {
	// BaseURL is the reverse endpoint (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Nominatim reverse geocoding client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a reverse geocoding client.
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
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// ReverseLookup resolves a human-readable place name for a coordinate.
func (c *Client) ReverseLookup(ctx context.Context, coord geo.Coordinate) (string, error) {
	url := fmt.Sprintf("%s?lat=%.6f&lon=%.6f&format=json&zoom=14", c.baseURL, coord.Lat, coord.Lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rev reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&rev); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	switch {
	case rev.Address.Suburb != "" && rev.Address.City != "":
		return rev.Address.Suburb + ", " + rev.Address.City, nil
	case rev.Address.City != "":
		return rev.Address.City, nil
	case rev.DisplayName != "":
		return rev.DisplayName, nil
	default:
		return "", fmt.Errorf("empty geocode result")
	}
}

// Nominatim API response structures.

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Suburb string `json:"suburb"`
		City   string `json:"city"`
		State  string `json:"state"`
	} `json:"address"`
}
