package geo

import "math"

// ZonePolygon is a concentric visualization ring around a region center.
// Rings are purely derived from the region's bounds and center; they carry
// no live data and are safe to cache indefinitely.
type ZonePolygon struct {
	Level      int          `json:"level"`
	RadiusKm   float64      `json:"radius_km"`
	Zone       string       `json:"zone"`
	Label      string       `json:"label"`
	Color      string       `json:"color"`
	Risk       string       `json:"risk"`
	IndexRange string       `json:"index_range"`
	Points     []Coordinate `json:"points"`
}

// zoneBand labels for the five ring levels plus the outer catch-all.
var zoneBands = []struct {
	zone, label, color, risk, indexRange string
}{
	{"good", "Good", "#00e400", "Low", "0-50"},
	{"moderate", "Moderate", "#ffff00", "Moderate", "51-100"},
	{"unhealthy_sensitive", "Unhealthy for Sensitive", "#ff7e00", "High", "101-150"},
	{"unhealthy", "Unhealthy", "#ff0000", "Very High", "151-200"},
	{"very_unhealthy", "Very Unhealthy", "#8f3f97", "Severe", "201-300"},
	{"hazardous", "Outer/Hazardous", "#7e0023", "Extreme", "301-500"},
}

const (
	zoneRingLevels  = 5
	zoneRingPoints  = 12
	zoneRingStepKm  = 10.0
	zoneOuterRadius = 50.0
	kmPerDegree     = 111.0
)

// Zones synthesizes the concentric ring polygons for a region. Levels 1-5
// are 12-point rings at 10km radius increments, clamped to the region
// bounds and closed by repeating the first point. The sixth entry is a
// label-only outer band with no geometry.
func Zones(r Region) []ZonePolygon {
	zones := make([]ZonePolygon, 0, zoneRingLevels+1)

	for level := 1; level <= zoneRingLevels; level++ {
		band := zoneBands[level-1]
		radius := float64(level) * zoneRingStepKm

		points := make([]Coordinate, 0, zoneRingPoints+1)
		for i := 0; i < zoneRingPoints; i++ {
			theta := float64(i) * 2 * math.Pi / zoneRingPoints

			// Equirectangular approximation is fine at ring scale.
			latOffset := radius / kmPerDegree * math.Cos(theta)
			lonOffset := radius / (kmPerDegree * math.Cos(r.Center.Lat*math.Pi/180)) * math.Sin(theta)

			points = append(points, clampToBounds(Coordinate{
				Lat: r.Center.Lat + latOffset,
				Lon: r.Center.Lon + lonOffset,
			}, r.Bounds))
		}
		points = append(points, points[0])

		zones = append(zones, ZonePolygon{
			Level:      level,
			RadiusKm:   radius,
			Zone:       band.zone,
			Label:      band.label,
			Color:      band.color,
			Risk:       band.risk,
			IndexRange: band.indexRange,
			Points:     points,
		})
	}

	outer := zoneBands[zoneRingLevels]
	zones = append(zones, ZonePolygon{
		Level:      zoneRingLevels + 1,
		RadiusKm:   zoneOuterRadius,
		Zone:       outer.zone,
		Label:      outer.label,
		Color:      outer.color,
		Risk:       outer.risk,
		IndexRange: outer.indexRange,
		Points:     []Coordinate{},
	})

	return zones
}

func clampToBounds(c Coordinate, b Bounds) Coordinate {
	if c.Lat < b.LatMin {
		c.Lat = b.LatMin
	}
	if c.Lat > b.LatMax {
		c.Lat = b.LatMax
	}
	if c.Lon < b.LonMin {
		c.Lon = b.LonMin
	}
	if c.Lon > b.LonMax {
		c.Lon = b.LonMax
	}
	return c
}
