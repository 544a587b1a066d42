// Package route builds interpolated paths between two coordinates and
// scores their average pollution exposure.
package route

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
)

// ErrUpstreamUnavailable is returned when an endpoint fusion fails.
// Route comparison has no partial-result meaning, so the failure is hard.
var ErrUpstreamUnavailable = errors.New("upstream data unavailable")

const (
	defaultPathSteps = 20
	coordPrecision   = 1e6

	// safeOffsetDeg is the amplitude of the lateral detour applied to the
	// safe path. The offset is cosmetic: it stands in for a real
	// low-pollution routing algorithm that was never built.
	safeOffsetDeg = 0.002

	// Fixed heuristics for the safe route. The discount, distance penalty
	// and reduction figure are placeholder constants, not derived from
	// spatial data.
	safeExposureDiscount = 0.85
	safeDistancePenalty  = 1.02
	safeReductionPercent = 15.0
)

// Plan is one scored path between two coordinates.
type Plan struct {
	Type            string           `json:"type"`
	Path            []geo.Coordinate `json:"path"`
	DistanceKm      float64          `json:"distance_km"`
	AverageExposure float64          `json:"average_exposure"`
}

// Comparison holds both route candidates plus the endpoint readings they
// were scored from.
type Comparison struct {
	Start             *fusion.Reading `json:"start"`
	End               *fusion.Reading `json:"end"`
	Direct            Plan            `json:"direct"`
	Safe              Plan            `json:"safe"`
	ExposureReduction float64         `json:"exposure_reduction_percent"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

// Fuser is the fused-reading query the engine scores endpoints with.
type Fuser interface {
	Fuse(ctx context.Context, coord geo.Coordinate) (*fusion.Reading, error)
}

// Engine compares route candidates between two fused endpoints.
type Engine struct {
	fuser  Fuser
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates a route engine.
func NewEngine(fuser Fuser, logger zerolog.Logger) *Engine {
	return &Engine{fuser: fuser, logger: logger, now: time.Now}
}

// DirectPath linearly interpolates steps+1 points between start and end,
// inclusive of both, each rounded to 6 decimal places.
func DirectPath(start, end geo.Coordinate, steps int) []geo.Coordinate {
	if steps < 1 {
		steps = defaultPathSteps
	}

	path := make([]geo.Coordinate, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		path = append(path, geo.Coordinate{
			Lat: round6(start.Lat + (end.Lat-start.Lat)*t),
			Lon: round6(start.Lon + (end.Lon-start.Lon)*t),
		})
	}
	return path
}

// SafePath applies a sinusoidal lateral offset to a direct path. The
// detour bulges the route sideways twice over its length.
func SafePath(direct []geo.Coordinate) []geo.Coordinate {
	if len(direct) < 2 {
		return append([]geo.Coordinate(nil), direct...)
	}

	path := make([]geo.Coordinate, 0, len(direct))
	for i, p := range direct {
		t := float64(i) / float64(len(direct)-1)
		offset := safeOffsetDeg * math.Sin(4*math.Pi*t)
		path = append(path, geo.Coordinate{
			Lat: round6(p.Lat + offset),
			Lon: round6(p.Lon - offset),
		})
	}
	return path
}

// PathDistance sums the haversine length of every path segment.
func PathDistance(path []geo.Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += geo.Distance(path[i-1], path[i])
	}
	return total
}

// Compare fuses both endpoints and scores a direct and a "safe"
// candidate between them. Both endpoints must lie inside a supported
// region; fusion failures surface as ErrUpstreamUnavailable.
func (e *Engine) Compare(ctx context.Context, start, end geo.Coordinate) (*Comparison, error) {
	if _, ok := geo.Resolve(start); !ok {
		return nil, fmt.Errorf("start %.4f,%.4f: %w", start.Lat, start.Lon, geo.ErrUnsupportedRegion)
	}
	if _, ok := geo.Resolve(end); !ok {
		return nil, fmt.Errorf("end %.4f,%.4f: %w", end.Lat, end.Lon, geo.ErrUnsupportedRegion)
	}

	startReading, err := e.fuser.Fuse(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("fuse start: %w", ErrUpstreamUnavailable)
	}
	endReading, err := e.fuser.Fuse(ctx, end)
	if err != nil {
		return nil, fmt.Errorf("fuse end: %w", ErrUpstreamUnavailable)
	}

	avgExposure := (startReading.PM25 + endReading.PM25) / 2

	directPath := DirectPath(start, end, defaultPathSteps)
	directDist := PathDistance(directPath)

	direct := Plan{
		Type:            "direct",
		Path:            directPath,
		DistanceKm:      directDist,
		AverageExposure: avgExposure,
	}
	safe := Plan{
		Type:            "safe",
		Path:            SafePath(directPath),
		DistanceKm:      directDist * safeDistancePenalty,
		AverageExposure: avgExposure * safeExposureDiscount,
	}

	e.logger.Info().
		Float64("distance_km", directDist).
		Float64("avg_exposure", avgExposure).
		Msg("routes compared")

	return &Comparison{
		Start:             startReading,
		End:               endReading,
		Direct:            direct,
		Safe:              safe,
		ExposureReduction: safeReductionPercent,
		GeneratedAt:       e.now().UTC(),
	}, nil
}

func round6(v float64) float64 {
	return math.Round(v*coordPrecision) / coordPrecision
}
