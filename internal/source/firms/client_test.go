package firms_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/firms"
)

var center = geo.Coordinate{Lat: 28.6139, Lon: 77.2090}

const detectionCSV = `latitude,longitude,bright_ti4,frp,confidence
28.7000,77.1000,330.1,12.5,n
28.6200,77.2200,310.4,4.2,n
20.0000,70.0000,305.0,2.0,n
bad,row,x,y,z
`

func TestFetchFires_FiltersByRadius(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(detectionCSV))
	}))
	defer server.Close()

	client := firms.NewClient(firms.ClientConfig{APIKey: "map-key", BaseURL: server.URL, Logger: zerolog.Nop()})

	events, err := client.FetchFires(context.Background(), center, 50)
	require.NoError(t, err)

	// The far detection and the malformed row are dropped.
	require.Len(t, events, 2)
	for _, e := range events {
		assert.LessOrEqual(t, e.DistanceKm, 50.0)
		assert.Positive(t, e.Intensity)
	}
}

func TestFetchFires_NoCredentialMeansNoFires(t *testing.T) {
	client := firms.NewClient(firms.ClientConfig{Logger: zerolog.Nop()})

	events, err := client.FetchFires(context.Background(), center, 50)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchFires_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	defer server.Close()

	client := firms.NewClient(firms.ClientConfig{APIKey: "map-key", BaseURL: server.URL, Logger: zerolog.Nop()})

	events, err := client.FetchFires(context.Background(), center, 50)
	require.NoError(t, err)
	assert.Empty(t, events)
}
