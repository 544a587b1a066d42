// Package heatmap interpolates sparse city readings into a dense grid
// for map rendering, using inverse-distance weighting.
package heatmap

import (
	"math"

	"github.com/airlens/airlens/internal/geo"
)

const (
	// idwPower is the inverse-distance exponent. Squared distance gives a
	// steep falloff that keeps city peaks visible on the rendered map.
	idwPower = 2.0

	// snapDistanceKm short-circuits interpolation when the target sits on
	// top of a sample, avoiding a near-zero denominator.
	snapDistanceKm = 0.1

	// defaultValue is the PM2.5 assumed when no samples exist at all.
	defaultValue = 100.0
)

// Sample is one known reading feeding the interpolation.
type Sample struct {
	Point geo.Coordinate `json:"point"`
	Value float64        `json:"value"`
}

// Interpolate estimates a value at target from the samples. Targets
// within snapDistanceKm of a sample take that sample's value directly;
// an empty sample set yields the default.
func Interpolate(target geo.Coordinate, samples []Sample) float64 {
	if len(samples) == 0 {
		return defaultValue
	}

	num, den := 0.0, 0.0
	for _, s := range samples {
		d := geo.Distance(target, s.Point)
		if d < snapDistanceKm {
			return s.Value
		}
		w := 1 / math.Pow(d, idwPower)
		num += w * s.Value
		den += w
	}
	return num / den
}
