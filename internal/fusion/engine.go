package fusion

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/aqi"
	"github.com/airlens/airlens/internal/geo"
)

// Confidence scoring: a flat base, a bonus when the primary pollutant
// feed answered, and small bonuses for the auxiliary signals. Capped so
// a fused estimate never claims near-certainty.
const (
	confidenceBase    = 70
	confidencePrimary = 20
	confidenceTraffic = 5
	confidenceFire    = 5
	confidenceCap     = 98
)

// EngineConfig holds the sources and tuning for a fusion engine.
// AirQuality and Weather are the primary feeds; Backup covers both when
// the primary pollutant feed has no PM2.5. The remaining sources are
// optional and only widen the reading when present.
type EngineConfig struct {
	AirQuality AirQualitySource
	Weather    WeatherSource
	Backup     CombinedSource
	Traffic    TrafficSource
	Fire       FireSource
	Geocoder   Geocoder

	// Logger for engine operations.
	Logger zerolog.Logger

	// FetchTimeout bounds each individual source fetch (default: 10s).
	FetchTimeout time.Duration

	// FireRadiusKm is the search radius for fire detections (default: 50).
	FireRadiusKm float64

	// ForecastHorizon, ForecastStep and ForecastPoints shape the embedded
	// forecast attached to every reading (default: 24h, 4h, 6 points).
	ForecastHorizon time.Duration
	ForecastStep    time.Duration
	ForecastPoints  int
}

// Engine fuses concurrent source fetches into a single Reading.
type Engine struct {
	airQuality AirQualitySource
	weather    WeatherSource
	backup     CombinedSource
	traffic    TrafficSource
	fire       FireSource
	geocoder   Geocoder

	logger       zerolog.Logger
	fetchTimeout time.Duration
	fireRadiusKm float64

	forecastHorizon int
	forecastStep    int
	forecastPoints  int

	now func() time.Time
}

// NewEngine creates a fusion engine.
func NewEngine(cfg EngineConfig) *Engine {
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 10 * time.Second
	}

	fireRadius := cfg.FireRadiusKm
	if fireRadius == 0 {
		fireRadius = 50.0
	}

	horizon := int(cfg.ForecastHorizon.Hours())
	if horizon == 0 {
		horizon = 24
	}
	step := int(cfg.ForecastStep.Hours())
	if step == 0 {
		step = 4
	}
	points := cfg.ForecastPoints
	if points == 0 {
		points = 6
	}

	return &Engine{
		airQuality:      cfg.AirQuality,
		weather:         cfg.Weather,
		backup:          cfg.Backup,
		traffic:         cfg.Traffic,
		fire:            cfg.Fire,
		geocoder:        cfg.Geocoder,
		logger:          cfg.Logger,
		fetchTimeout:    fetchTimeout,
		fireRadiusKm:    fireRadius,
		forecastHorizon: horizon,
		forecastStep:    step,
		forecastPoints:  points,
		now:             time.Now,
	}
}

// fetched collects the outcome of the concurrent source pass. A nil slot
// means the source was absent or unavailable; unavailability is logged,
// never propagated.
type fetched struct {
	air     *AirSample
	weather *WeatherSample
	traffic *TrafficSample
	fires   []FireEvent
}

// Fuse builds a unified reading for a coordinate. Coordinates outside
// every supported region are replaced with the nearest region center and
// the reading is flagged as a fallback. The only hard failure is having
// no PM2.5 from any source.
func (e *Engine) Fuse(ctx context.Context, coord geo.Coordinate) (*Reading, error) {
	region, ok := geo.Resolve(coord)
	fallback := false
	if !ok {
		center, fallbackRegion := geo.DefaultFor(coord)
		e.logger.Debug().
			Float64("lat", coord.Lat).
			Float64("lon", coord.Lon).
			Str("region", fallbackRegion).
			Msg("coordinate outside supported regions, using region center")
		coord = center
		region = fallbackRegion
		fallback = true
	}

	return e.fuseAt(ctx, coord, region, fallback)
}

// FuseInRegion fuses a coordinate whose region is already known,
// skipping bounds resolution. Catalogue cities may sit just outside
// their region's rectangle, so region-wide passes use this entry point.
func (e *Engine) FuseInRegion(ctx context.Context, coord geo.Coordinate, regionID string) (*Reading, error) {
	return e.fuseAt(ctx, coord, regionID, false)
}

// fuseAt runs the fusion pass for a coordinate whose region is already
// known. Catalogue cities may sit just outside their region's rectangle,
// so batch passes come through here without re-resolving.
func (e *Engine) fuseAt(ctx context.Context, coord geo.Coordinate, region string, fallback bool) (*Reading, error) {
	f := e.fetchAll(ctx, coord)

	reading := &Reading{
		Location:  coord,
		Region:    region,
		Fallback:  fallback,
		Timestamp: e.now().UTC(),
	}

	if err := e.applyAir(ctx, coord, f, reading); err != nil {
		return nil, err
	}
	e.applyWeather(f, reading)
	e.applyTraffic(f, reading)
	e.applyFires(f, reading)

	reading.Confidence = e.confidence(reading)
	reading.PlaceName = e.placeName(ctx, coord)
	reading.Forecast = aqi.Project(
		reading.PM25, reading.Timestamp,
		e.forecastHorizon, e.forecastStep, e.forecastPoints,
		aqi.EmbeddedPreset(),
	)

	e.logger.Info().
		Str("region", region).
		Float64("pm25", reading.PM25).
		Int("index", reading.Index).
		Int("confidence", reading.Confidence).
		Str("air_source", reading.Sources.AirQuality).
		Msg("reading fused")

	return reading, nil
}

// fetchAll runs the four source fetches concurrently, each under its own
// timeout. Every result lands in a dedicated slot so no locking is
// needed beyond the WaitGroup.
func (e *Engine) fetchAll(ctx context.Context, coord geo.Coordinate) *fetched {
	f := &fetched{}

	var wg sync.WaitGroup

	if e.airQuality != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()

			sample, err := e.airQuality.FetchAir(fetchCtx, coord)
			if err != nil {
				e.logger.Warn().Err(err).Str("source", e.airQuality.Name()).Msg("air quality fetch failed")
				return
			}
			f.air = sample
		}()
	}

	if e.weather != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()

			sample, err := e.weather.FetchWeather(fetchCtx, coord)
			if err != nil {
				e.logger.Warn().Err(err).Str("source", e.weather.Name()).Msg("weather fetch failed")
				return
			}
			f.weather = sample
		}()
	}

	if e.traffic != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()

			sample, err := e.traffic.FetchTraffic(fetchCtx, coord)
			if err != nil {
				e.logger.Warn().Err(err).Str("source", e.traffic.Name()).Msg("traffic fetch failed")
				return
			}
			f.traffic = sample
		}()
	}

	if e.fire != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
			defer cancel()

			events, err := e.fire.FetchFires(fetchCtx, coord, e.fireRadiusKm)
			if err != nil {
				e.logger.Warn().Err(err).Str("source", e.fire.Name()).Msg("fire fetch failed")
				return
			}
			f.fires = events
		}()
	}

	wg.Wait()
	return f
}

// applyAir fills pollutant fields from the primary sample, falling back
// to the backup combined source when the primary yielded no PM2.5. The
// backup call is sequential: it only runs once the concurrent pass has
// proven the primary insufficient.
func (e *Engine) applyAir(ctx context.Context, coord geo.Coordinate, f *fetched, r *Reading) error {
	air := f.air

	if (air == nil || air.PM25 == nil) && e.backup != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()

		backupAir, backupWeather, err := e.backup.FetchCombined(fetchCtx, coord)
		if err != nil {
			e.logger.Warn().Err(err).Str("source", e.backup.Name()).Msg("backup fetch failed")
		} else {
			if backupAir != nil && backupAir.PM25 != nil {
				air = backupAir
			}
			if f.weather == nil && backupWeather != nil {
				f.weather = backupWeather
			}
		}
	}

	if air == nil || air.PM25 == nil {
		return ErrNoData
	}

	r.PM25 = *air.PM25
	r.PM10 = air.PM10
	r.NO2 = air.NO2
	r.O3 = air.O3
	r.CO = air.CO
	r.Sources.AirQuality = air.Source
	r.primaryAir = air == f.air

	band := aqi.Categorize(aqi.ToIndex(r.PM25))
	r.Index = aqi.ToIndex(r.PM25)
	r.Category = band.Category
	r.Color = band.Color
	r.Icon = band.Icon
	r.Zone = band.Zone
	r.Risk = band.Risk

	return nil
}

func (e *Engine) applyWeather(f *fetched, r *Reading) {
	if f.weather == nil {
		return
	}
	r.Temperature = f.weather.Temperature
	r.Humidity = f.weather.Humidity
	r.WindSpeed = f.weather.WindSpeed
	r.WindDirection = f.weather.WindDirection
	r.Pressure = f.weather.Pressure
	r.Sources.Weather = f.weather.Source
}

func (e *Engine) applyTraffic(f *fetched, r *Reading) {
	if f.traffic == nil {
		return
	}
	congestion := f.traffic.Congestion
	r.TrafficCongestion = &congestion
	r.Sources.Traffic = f.traffic.Source
}

func (e *Engine) applyFires(f *fetched, r *Reading) {
	if f.fires == nil {
		return
	}
	count := len(f.fires)
	r.FireCount = &count
	r.Fires = f.fires
	if e.fire != nil {
		r.Sources.Fire = e.fire.Name()
	}
}

func (e *Engine) confidence(r *Reading) int {
	score := confidenceBase
	if r.primaryAir {
		score += confidencePrimary
	}
	if r.TrafficCongestion != nil {
		score += confidenceTraffic
	}
	if r.FireCount != nil && *r.FireCount >= 1 {
		score += confidenceFire
	}
	if score > confidenceCap {
		score = confidenceCap
	}
	return score
}

// placeName resolves a display name for the coordinate. Geocoding is
// best effort; on failure the coordinate itself becomes the label.
func (e *Engine) placeName(ctx context.Context, coord geo.Coordinate) string {
	if e.geocoder != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()

		name, err := e.geocoder.ReverseLookup(lookupCtx, coord)
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			e.logger.Debug().Err(err).Msg("reverse geocode failed")
		}
	}
	return fmt.Sprintf("%.4f, %.4f", coord.Lat, coord.Lon)
}

// Forecast projects a standalone bounded forecast from a fresh reading
// at the coordinate. The horizon is clamped to [1h, maxHorizon] and the
// point count to maxPoints.
func (e *Engine) Forecast(ctx context.Context, coord geo.Coordinate, horizonHours, stepHours, maxHorizon, maxPoints int) (*Reading, []aqi.ForecastPoint, error) {
	if horizonHours < 1 {
		horizonHours = 1
	}
	if horizonHours > maxHorizon {
		horizonHours = maxHorizon
	}
	if stepHours < 1 {
		stepHours = 1
	}

	reading, err := e.Fuse(ctx, coord)
	if err != nil {
		return nil, nil, err
	}

	count := int(math.Ceil(float64(horizonHours) / float64(stepHours)))
	if count > maxPoints {
		count = maxPoints
	}

	points := aqi.Project(reading.PM25, reading.Timestamp, count*stepHours, stepHours, count, aqi.BoundedPreset())
	return reading, points, nil
}
