package geocode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/geocode"
)

func TestReverseLookup_SuburbAndCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{
			"display_name": "Connaught Place, New Delhi, Delhi, India",
			"address": {"suburb": "Connaught Place", "city": "New Delhi", "state": "Delhi"}
		}`))
	}))
	defer server.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	name, err := client.ReverseLookup(context.Background(), geo.Coordinate{Lat: 28.63, Lon: 77.21})
	require.NoError(t, err)
	assert.Equal(t, "Connaught Place, New Delhi", name)
}

func TestReverseLookup_FallsBackToDisplayName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"display_name": "Somewhere, India", "address": {}}`))
	}))
	defer server.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	name, err := client.ReverseLookup(context.Background(), geo.Coordinate{Lat: 20, Lon: 77})
	require.NoError(t, err)
	assert.Equal(t, "Somewhere, India", name)
}

func TestReverseLookup_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: server.URL, Logger: zerolog.Nop()})

	_, err := client.ReverseLookup(context.Background(), geo.Coordinate{Lat: 0, Lon: 0})
	assert.Error(t, err)
}
