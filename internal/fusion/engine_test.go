package fusion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
)

var delhiCenter = geo.Coordinate{Lat: 28.6139, Lon: 77.2090}

func fptr(v float64) *float64 { return &v }

type stubAir struct {
	sample *fusion.AirSample
	err    error
	calls  int
}

func (s *stubAir) Name() string { return "stub-air" }
func (s *stubAir) FetchAir(_ context.Context, _ geo.Coordinate) (*fusion.AirSample, error) {
	s.calls++
	return s.sample, s.err
}

type stubWeather struct {
	sample *fusion.WeatherSample
	err    error
}

func (s *stubWeather) Name() string { return "stub-weather" }
func (s *stubWeather) FetchWeather(_ context.Context, _ geo.Coordinate) (*fusion.WeatherSample, error) {
	return s.sample, s.err
}

type stubBackup struct {
	air     *fusion.AirSample
	weather *fusion.WeatherSample
	err     error
	calls   int
}

func (s *stubBackup) Name() string { return "stub-backup" }
func (s *stubBackup) FetchCombined(_ context.Context, _ geo.Coordinate) (*fusion.AirSample, *fusion.WeatherSample, error) {
	s.calls++
	return s.air, s.weather, s.err
}

type stubTraffic struct {
	sample *fusion.TrafficSample
	err    error
}

func (s *stubTraffic) Name() string { return "stub-traffic" }
func (s *stubTraffic) FetchTraffic(_ context.Context, _ geo.Coordinate) (*fusion.TrafficSample, error) {
	return s.sample, s.err
}

type stubFire struct {
	events []fusion.FireEvent
	err    error
}

func (s *stubFire) Name() string { return "stub-fire" }
func (s *stubFire) FetchFires(_ context.Context, _ geo.Coordinate, _ float64) ([]fusion.FireEvent, error) {
	return s.events, s.err
}

type stubGeocoder struct {
	name string
	err  error
}

func (s *stubGeocoder) ReverseLookup(_ context.Context, _ geo.Coordinate) (string, error) {
	return s.name, s.err
}

func newEngine(cfg fusion.EngineConfig) *fusion.Engine {
	cfg.Logger = zerolog.Nop()
	return fusion.NewEngine(cfg)
}

func TestFuse_AllSourcesPresent(t *testing.T) {
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{
			PM25: fptr(180), PM10: fptr(250), Source: "openaq",
		}},
		Weather: &stubWeather{sample: &fusion.WeatherSample{
			Temperature: fptr(31.5), Humidity: fptr(62), Source: "openweather",
		}},
		Traffic: &stubTraffic{sample: &fusion.TrafficSample{Congestion: 1.4, Source: "tomtom"}},
		Fire: &stubFire{events: []fusion.FireEvent{
			{Point: geo.Coordinate{Lat: 28.7, Lon: 77.1}, DistanceKm: 12.5, Intensity: 310},
		}},
		Geocoder: &stubGeocoder{name: "Connaught Place, New Delhi"},
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)

	assert.Equal(t, "delhi", reading.Region)
	assert.False(t, reading.Fallback)
	assert.InDelta(t, 180.0, reading.PM25, 1e-9)
	require.NotNil(t, reading.PM10)
	assert.InDelta(t, 250.0, *reading.PM10, 1e-9)
	require.NotNil(t, reading.Temperature)
	assert.InDelta(t, 31.5, *reading.Temperature, 1e-9)
	require.NotNil(t, reading.TrafficCongestion)
	require.NotNil(t, reading.FireCount)
	assert.Equal(t, 1, *reading.FireCount)

	// 70 base + 20 primary + 5 traffic + 5 fire.
	assert.Equal(t, 98, reading.Confidence)

	// PM2.5 180 lands in the 201-300 index band.
	assert.Equal(t, "Very Unhealthy", reading.Category)
	assert.Equal(t, "#8f3f97", reading.Color)
	assert.Equal(t, "very_unhealthy", reading.Zone)
	assert.Equal(t, "openaq", reading.Sources.AirQuality)
	assert.Equal(t, "openweather", reading.Sources.Weather)
	assert.Equal(t, "tomtom", reading.Sources.Traffic)
	assert.Equal(t, "stub-fire", reading.Sources.Fire)
	assert.Equal(t, "Connaught Place, New Delhi", reading.PlaceName)

	require.Len(t, reading.Forecast, 6)
}

func TestFuse_BackupCoversMissingPM25(t *testing.T) {
	backup := &stubBackup{
		air:     &fusion.AirSample{PM25: fptr(95), Source: "waqi"},
		weather: &fusion.WeatherSample{Temperature: fptr(28), Source: "waqi"},
	}
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{err: errors.New("upstream 502")},
		Weather:    &stubWeather{err: errors.New("timeout")},
		Backup:     backup,
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)

	assert.Equal(t, 1, backup.calls)
	assert.InDelta(t, 95.0, reading.PM25, 1e-9)
	assert.Equal(t, "waqi", reading.Sources.AirQuality)

	// Backup weather fills the gap left by the failed weather source.
	require.NotNil(t, reading.Temperature)
	assert.Equal(t, "waqi", reading.Sources.Weather)

	// No primary bonus, no aux sources: base 70 only.
	assert.Equal(t, 70, reading.Confidence)
}

func TestFuse_BackupNotCalledWhenPrimaryServes(t *testing.T) {
	backup := &stubBackup{air: &fusion.AirSample{PM25: fptr(40), Source: "waqi"}}
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{PM25: fptr(60), Source: "openaq"}},
		Backup:     backup,
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)

	assert.Equal(t, 0, backup.calls)
	assert.InDelta(t, 60.0, reading.PM25, 1e-9)
	assert.Equal(t, 90, reading.Confidence)
}

func TestFuse_NoDataAnywhere(t *testing.T) {
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{err: errors.New("down")},
		Backup:     &stubBackup{err: errors.New("also down")},
	})

	_, err := engine.Fuse(context.Background(), delhiCenter)
	assert.ErrorIs(t, err, fusion.ErrNoData)
}

func TestFuse_PrimaryWithoutPM25TriggersBackup(t *testing.T) {
	backup := &stubBackup{air: &fusion.AirSample{PM25: fptr(55), Source: "waqi"}}
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{PM10: fptr(120), Source: "openaq"}},
		Backup:     backup,
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)

	assert.Equal(t, 1, backup.calls)
	assert.InDelta(t, 55.0, reading.PM25, 1e-9)
	assert.Equal(t, "waqi", reading.Sources.AirQuality)
}

func TestFuse_UnsupportedCoordinateFallsBack(t *testing.T) {
	air := &stubAir{sample: &fusion.AirSample{PM25: fptr(80), Source: "openaq"}}
	engine := newEngine(fusion.EngineConfig{AirQuality: air})

	// London is north of the 23°N split, so Delhi's center stands in.
	reading, err := engine.Fuse(context.Background(), geo.Coordinate{Lat: 51.5, Lon: -0.1})
	require.NoError(t, err)

	assert.True(t, reading.Fallback)
	assert.Equal(t, "delhi", reading.Region)
	assert.InDelta(t, delhiCenter.Lat, reading.Location.Lat, 1e-9)
	assert.InDelta(t, delhiCenter.Lon, reading.Location.Lon, 1e-9)
}

func TestFuse_GeocoderFailureUsesCoordinateLabel(t *testing.T) {
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{PM25: fptr(30), Source: "openaq"}},
		Geocoder:   &stubGeocoder{err: errors.New("quota exceeded")},
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)
	assert.Equal(t, "28.6139, 77.2090", reading.PlaceName)
}

func TestFuse_SparseOptionalFields(t *testing.T) {
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{PM25: fptr(22), Source: "openaq"}},
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)

	assert.Nil(t, reading.PM10)
	assert.Nil(t, reading.Temperature)
	assert.Nil(t, reading.TrafficCongestion)
	assert.Nil(t, reading.FireCount)
	assert.Empty(t, reading.Sources.Weather)

	// Band metadata is always populated.
	assert.Equal(t, "Moderate", reading.Category)
	assert.NotEmpty(t, reading.Icon)
	assert.NotEmpty(t, reading.Risk)
}

func TestFuse_ZeroFiresEarnsNoBonus(t *testing.T) {
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{PM25: fptr(22), Source: "openaq"}},
		Fire:       &stubFire{events: []fusion.FireEvent{}},
	})

	reading, err := engine.Fuse(context.Background(), delhiCenter)
	require.NoError(t, err)
	assert.Equal(t, 90, reading.Confidence)
}

func TestForecast_ClampsHorizonAndPoints(t *testing.T) {
	engine := newEngine(fusion.EngineConfig{
		AirQuality: &stubAir{sample: &fusion.AirSample{PM25: fptr(100), Source: "openaq"}},
	})

	reading, points, err := engine.Forecast(context.Background(), delhiCenter, 72, 3, 48, 8)
	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Len(t, points, 8)

	_, points, err = engine.Forecast(context.Background(), delhiCenter, 6, 3, 48, 8)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}
