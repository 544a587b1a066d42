package tomtom_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/tomtom"
)

func TestFetchTraffic_CongestionRatio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "key=k")
		_, _ = w.Write([]byte(`{"flowSegmentData": {"currentSpeed": 20, "freeFlowSpeed": 50, "confidence": 0.95}}`))
	}))
	defer server.Close()

	client := tomtom.NewClient(tomtom.ClientConfig{APIKey: "k", BaseURL: server.URL, Logger: zerolog.Nop()})

	sample, err := client.FetchTraffic(context.Background(), geo.Coordinate{Lat: 28.6, Lon: 77.2})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, sample.Congestion, 1e-9)
	assert.Equal(t, "tomtom", sample.Source)
}

func TestFetchTraffic_NoCredential(t *testing.T) {
	client := tomtom.NewClient(tomtom.ClientConfig{Logger: zerolog.Nop()})

	_, err := client.FetchTraffic(context.Background(), geo.Coordinate{Lat: 28.6, Lon: 77.2})
	assert.ErrorIs(t, err, tomtom.ErrNoCredential)
}

func TestFetchTraffic_ZeroSpeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"flowSegmentData": {"currentSpeed": 0, "freeFlowSpeed": 50}}`))
	}))
	defer server.Close()

	client := tomtom.NewClient(tomtom.ClientConfig{APIKey: "k", BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.FetchTraffic(context.Background(), geo.Coordinate{Lat: 28.6, Lon: 77.2})
	assert.Error(t, err)
}
