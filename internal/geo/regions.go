// Package geo provides the static region catalogue and coordinate helpers.
package geo

import "errors"

// ErrUnsupportedRegion is returned when a region ID is not in the
// catalogue.
var ErrUnsupportedRegion = errors.New("unsupported region")

// Coordinate is a geographic point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a rectangular lat/lon bounding box.
type Bounds struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Contains reports whether c lies inside the box (inclusive).
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.LatMin && c.Lat <= b.LatMax &&
		c.Lon >= b.LonMin && c.Lon <= b.LonMax
}

// City is a named location inside a region. Weight biases hotspot grids
// toward dense urban areas; Factor scales expected pollution relative to
// the regional baseline.
type City struct {
	Name   string     `json:"name"`
	Point  Coordinate `json:"point"`
	Weight float64    `json:"-"`
	Factor float64    `json:"-"`
}

// Region is a supported administrative area. Regions are loaded once at
// process start and never mutated.
type Region struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Bounds Bounds     `json:"bounds"`
	Center Coordinate `json:"center"`
	Cities []City     `json:"cities"`
}

// Regions returns the supported region catalogue in resolution order.
// Rectangles are checked first-match, so the slice order is the tiebreak
// if two regions ever overlap.
func Regions() []Region {
	return regionCatalogue
}

// RegionByID looks up a region by its identifier.
func RegionByID(id string) (Region, bool) {
	for _, r := range regionCatalogue {
		if r.ID == id {
			return r, true
		}
	}
	return Region{}, false
}

var regionCatalogue = []Region{
	{
		ID:     "delhi",
		Name:   "Delhi NCR",
		Bounds: Bounds{LatMin: 28.4, LatMax: 28.9, LonMin: 76.8, LonMax: 77.3},
		Center: Coordinate{Lat: 28.6139, Lon: 77.2090},
		Cities: []City{
			{Name: "New Delhi", Point: Coordinate{Lat: 28.6139, Lon: 77.2090}, Weight: 2.0, Factor: 1.3},
			{Name: "Anand Vihar", Point: Coordinate{Lat: 28.6468, Lon: 77.3164}, Weight: 2.5, Factor: 1.5},
			{Name: "ITO", Point: Coordinate{Lat: 28.6298, Lon: 77.2423}, Weight: 2.2, Factor: 1.4},
			{Name: "RK Puram", Point: Coordinate{Lat: 28.5633, Lon: 77.1769}, Weight: 1.8, Factor: 1.2},
			{Name: "Dwarka", Point: Coordinate{Lat: 28.5704, Lon: 77.0653}, Weight: 1.5, Factor: 1.1},
			{Name: "Rohini", Point: Coordinate{Lat: 28.7344, Lon: 77.0895}, Weight: 1.5, Factor: 1.1},
			{Name: "Noida", Point: Coordinate{Lat: 28.5355, Lon: 77.3910}, Weight: 2.0, Factor: 1.3},
			{Name: "Gurgaon", Point: Coordinate{Lat: 28.4595, Lon: 77.0266}, Weight: 1.8, Factor: 1.2},
		},
	},
	{
		ID:     "maharashtra",
		Name:   "Maharashtra",
		Bounds: Bounds{LatMin: 15.6, LatMax: 22.0, LonMin: 72.6, LonMax: 80.9},
		Center: Coordinate{Lat: 19.0760, Lon: 72.8777},
		Cities: []City{
			{Name: "Mumbai", Point: Coordinate{Lat: 19.0760, Lon: 72.8777}, Weight: 2.5, Factor: 1.3},
			{Name: "Pune", Point: Coordinate{Lat: 18.5204, Lon: 73.8567}, Weight: 2.0, Factor: 1.2},
			{Name: "Nagpur", Point: Coordinate{Lat: 21.1458, Lon: 79.0882}, Weight: 1.8, Factor: 1.1},
			{Name: "Nashik", Point: Coordinate{Lat: 19.9975, Lon: 73.7898}, Weight: 1.5, Factor: 1.0},
			{Name: "Aurangabad", Point: Coordinate{Lat: 19.8762, Lon: 75.3433}, Weight: 1.3, Factor: 1.0},
		},
	},
}

// latitude split between the northern and southern fallback locations.
const fallbackLatitudeSplit = 23.0

// Resolve checks coord against every region's bounds. First match wins.
func Resolve(coord Coordinate) (string, bool) {
	for _, r := range regionCatalogue {
		if r.Bounds.Contains(coord) {
			return r.ID, true
		}
	}
	return "", false
}

// DefaultFor picks a fallback location for an unsupported coordinate.
// Latitudes above 23°N fall back to the Delhi center, everything else to
// the Mumbai center. There is no error path; callers always get a usable
// coordinate.
func DefaultFor(coord Coordinate) (Coordinate, string) {
	if coord.Lat > fallbackLatitudeSplit {
		return regionCatalogue[0].Center, regionCatalogue[0].ID
	}
	return regionCatalogue[1].Center, regionCatalogue[1].ID
}
