package aqi

import "time"

// ForecastPoint is one projected reading at a future offset.
type ForecastPoint struct {
	Time     time.Time `json:"time"`
	Hour     int       `json:"hour"`
	PM25     float64   `json:"pm25"`
	Index    int       `json:"index"`
	Category string    `json:"category"`
	Color    string    `json:"color"`
	Zone     string    `json:"zone"`
}

// ForecastPreset holds the diurnal multipliers for one forecast variant.
// Two presets exist for compatibility: the embedded forecast attached to
// every fused reading uses flatter peaks than the standalone endpoint.
type ForecastPreset struct {
	Name        string
	MorningPeak float64 // hours 8-10
	EveningPeak float64 // hours 17-20
	NightDip    float64 // hours 0-5
}

// EmbeddedPreset drives the 6-point forecast embedded in fused readings.
func EmbeddedPreset() ForecastPreset {
	return ForecastPreset{Name: "embedded", MorningPeak: 1.2, EveningPeak: 1.2, NightDip: 0.8}
}

// BoundedPreset drives the standalone bounded forecast endpoint.
func BoundedPreset() ForecastPreset {
	return ForecastPreset{Name: "bounded", MorningPeak: 1.25, EveningPeak: 1.35, NightDip: 0.75}
}

// Multiplier returns the diurnal factor for an hour of day (0-23).
func (p ForecastPreset) Multiplier(hour int) float64 {
	switch {
	case hour >= 8 && hour <= 10:
		return p.MorningPeak
	case hour >= 17 && hour <= 20:
		return p.EveningPeak
	case hour <= 5:
		return p.NightDip
	default:
		return 1.0
	}
}

// Projected PM2.5 is kept inside a plausible physical envelope.
const (
	forecastFloorPM   = 5.0
	forecastCeilingPM = 500.0
)

// Project derives a sequence of forecast points from a base PM2.5 value.
// Offsets run step, 2*step, ... up to horizonHours, truncated at
// maxPoints. The model is a deterministic time-of-day multiplier, not a
// learned one.
func Project(basePM25 float64, now time.Time, horizonHours, stepHours, maxPoints int, preset ForecastPreset) []ForecastPoint {
	if stepHours <= 0 || horizonHours <= 0 || maxPoints <= 0 {
		return nil
	}

	count := horizonHours / stepHours
	if count > maxPoints {
		count = maxPoints
	}

	points := make([]ForecastPoint, 0, count)
	for i := 1; i <= count; i++ {
		offset := i * stepHours
		hour := (now.Hour() + offset) % 24

		pm := basePM25 * preset.Multiplier(hour)
		if pm < forecastFloorPM {
			pm = forecastFloorPM
		}
		if pm > forecastCeilingPM {
			pm = forecastCeilingPM
		}

		index := ToIndex(pm)
		band := Categorize(index)

		points = append(points, ForecastPoint{
			Time:     now.Add(time.Duration(offset) * time.Hour),
			Hour:     hour,
			PM25:     pm,
			Index:    index,
			Category: band.Category,
			Color:    band.Color,
			Zone:     band.Zone,
		})
	}

	return points
}
