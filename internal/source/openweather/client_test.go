package openweather_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/source/openweather"
)

func newClient(serverURL string) *openweather.Client {
	return openweather.NewClient(openweather.ClientConfig{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Logger:  zerolog.Nop(),
	})
}

func TestFetchWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"main": {"temp": 31.5, "pressure": 1008, "humidity": 62},
			"wind": {"speed": 3.4, "deg": 220}
		}`))
	}))
	defer server.Close()

	sample, err := newClient(server.URL).FetchWeather(context.Background(),
		geo.Coordinate{Lat: 28.6139, Lon: 77.2090})
	require.NoError(t, err)

	require.NotNil(t, sample.Temperature)
	assert.InDelta(t, 31.5, *sample.Temperature, 0.001)
	require.NotNil(t, sample.Humidity)
	assert.InDelta(t, 62, *sample.Humidity, 0.001)
	require.NotNil(t, sample.WindSpeed)
	assert.InDelta(t, 3.4, *sample.WindSpeed, 0.001)
	require.NotNil(t, sample.Pressure)
	assert.InDelta(t, 1008, *sample.Pressure, 0.001)
	assert.Equal(t, openweather.SourceName, sample.Source)
}

func TestFetchWeather_NoCredential(t *testing.T) {
	client := openweather.NewClient(openweather.ClientConfig{Logger: zerolog.Nop()})

	_, err := client.FetchWeather(context.Background(), geo.Coordinate{Lat: 19, Lon: 72})
	assert.True(t, errors.Is(err, openweather.ErrNoCredential))
}

func TestFetchWeather_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newClient(server.URL).FetchWeather(context.Background(),
		geo.Coordinate{Lat: 28.6139, Lon: 77.2090})
	assert.Error(t, err)
}
