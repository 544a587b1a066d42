// Package tomtom implements the traffic congestion proxy client.
package tomtom

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
	SourceName = "tomtom"

	// DefaultBaseURL is the TomTom traffic flow API base URL.
	DefaultBaseURL = "https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json"
)

// ErrNoCredential is returned when the client has no API key.
var ErrNoCredential = errors.New("tomtom: no API key configured")

// ClientConfig holds configuration for the TomTom client.
type ClientConfig struct {
	// APIKey is the TomTom API key (required).
	APIKey string

	// BaseURL is the API base URL (optional).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a TomTom traffic flow client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a TomTom client.
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

// FetchTraffic derives a congestion ratio for a coordinate from the
// nearest road segment's free-flow vs current speed. 1.0 means free
// flow; higher means slower traffic and a dirtier commute.
func (c *Client) FetchTraffic(ctx context.Context, coord geo.Coordinate) (*fusion.TrafficSample, error) {
	if c.apiKey == "" {
		return nil, ErrNoCredential
	}

	url := fmt.Sprintf("%s?point=%.6f,%.6f&key=%s", c.baseURL, coord.Lat, coord.Lon, c.apiKey)

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

	var flow flowResponse
	if err := json.NewDecoder(resp.Body).Decode(&flow); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	seg := flow.FlowSegmentData
	if seg.CurrentSpeed <= 0 {
		return nil, fmt.Errorf("segment reported non-positive current speed %.1f", seg.CurrentSpeed)
	}

	return &fusion.TrafficSample{
		Congestion: seg.FreeFlowSpeed / seg.CurrentSpeed,
		Source:     SourceName,
	}, nil
}

// TomTom API response structures.

type flowResponse struct {
	FlowSegmentData struct {
		CurrentSpeed  float64 `json:"currentSpeed"`
		FreeFlowSpeed float64 `json:"freeFlowSpeed"`
		Confidence    float64 `json:"confidence"`
	} `json:"flowSegmentData"`
}
