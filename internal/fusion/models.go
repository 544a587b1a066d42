// Package fusion combines several live environmental sources into a
// single air-quality reading with confidence scoring and fallback.
package fusion

import (
	"context"
	"errors"
	"time"

	"github.com/airlens/airlens/internal/aqi"
	"github.com/airlens/airlens/internal/geo"
)

// Fusion errors.
var (
	// ErrNoData is returned when no source yields a usable PM2.5 value.
	ErrNoData = errors.New("no air quality data available from any source")
)

// AirSample is a partial pollutant record from one air-quality source.
// Optional pollutants are nil when the source did not report them.
type AirSample struct {
	PM25         *float64
	PM10         *float64
	NO2          *float64
	O3           *float64
	CO           *float64
	Source       string
	StationCount int
}

// WeatherSample is a partial weather record. All attributes are optional.
type WeatherSample struct {
	Temperature   *float64
	Humidity      *float64
	WindSpeed     *float64
	WindDirection *float64
	Pressure      *float64
	Source        string
}

// TrafficSample is a congestion ratio derived from current vs free-flow
// speed (1.0 means free flow).
type TrafficSample struct {
	Congestion float64
	Source     string
}

// FireEvent is one active fire detection near a coordinate.
type FireEvent struct {
	Point      geo.Coordinate `json:"point"`
	DistanceKm float64        `json:"distance_km"`
	Intensity  float64        `json:"intensity"`
}

// AirQualitySource fetches pollutant concentrations for a coordinate.
type AirQualitySource interface {
	Name() string
	FetchAir(ctx context.Context, coord geo.Coordinate) (*AirSample, error)
}

// WeatherSource fetches weather attributes for a coordinate.
type WeatherSource interface {
	Name() string
	FetchWeather(ctx context.Context, coord geo.Coordinate) (*WeatherSample, error)
}

// CombinedSource is the backup feed serving both pollutant and weather
// subsets in one call.
type CombinedSource interface {
	Name() string
	FetchCombined(ctx context.Context, coord geo.Coordinate) (*AirSample, *WeatherSample, error)
}

// TrafficSource fetches a congestion proxy for a coordinate.
type TrafficSource interface {
	Name() string
	FetchTraffic(ctx context.Context, coord geo.Coordinate) (*TrafficSample, error)
}

// FireSource fetches active fire detections within radiusKm of a
// coordinate.
type FireSource interface {
	Name() string
	FetchFires(ctx context.Context, coord geo.Coordinate, radiusKm float64) ([]FireEvent, error)
}

// Geocoder resolves a display name for a coordinate, best effort.
type Geocoder interface {
	ReverseLookup(ctx context.Context, coord geo.Coordinate) (string, error)
}

// Sources records which source contributed each category of a reading.
type Sources struct {
	AirQuality string `json:"air_quality"`
	Weather    string `json:"weather,omitempty"`
	Traffic    string `json:"traffic,omitempty"`
	Fire       string `json:"fire,omitempty"`
}

// Reading is the unified output of one fusion pass. Optional fields are
// nil pointers so the serialized form stays sparse, but PM2.5, index and
// band metadata are always present.
type Reading struct {
	Location  geo.Coordinate `json:"location"`
	Region    string         `json:"region"`
	PlaceName string         `json:"place_name"`
	Fallback  bool           `json:"fallback,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	PM25 float64  `json:"pm25"`
	PM10 *float64 `json:"pm10,omitempty"`
	NO2  *float64 `json:"no2,omitempty"`
	O3   *float64 `json:"o3,omitempty"`
	CO   *float64 `json:"co,omitempty"`

	Temperature   *float64 `json:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	WindSpeed     *float64 `json:"wind_speed,omitempty"`
	WindDirection *float64 `json:"wind_direction,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`

	TrafficCongestion *float64    `json:"traffic_congestion,omitempty"`
	FireCount         *int        `json:"fire_count,omitempty"`
	Fires             []FireEvent `json:"fires,omitempty"`

	Sources    Sources `json:"sources"`
	Confidence int     `json:"confidence"`

	Index    int    `json:"index"`
	Category string `json:"category"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	Zone     string `json:"zone"`
	Risk     string `json:"risk"`

	Forecast []aqi.ForecastPoint `json:"forecast,omitempty"`

	// primaryAir records whether the primary pollutant feed served the
	// PM2.5 value, which earns the larger confidence bonus.
	primaryAir bool
}
