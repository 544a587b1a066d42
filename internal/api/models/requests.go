package models

import "github.com/airlens/airlens/internal/geo"

// PointParam is a lat/lon pair in a JSON request body.
type PointParam struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinate converts the parameter to a geo coordinate.
func (p PointParam) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// Valid reports whether the pair is inside the WGS84 range.
func (p PointParam) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
