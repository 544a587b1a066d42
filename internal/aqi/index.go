// Package aqi converts PM2.5 concentrations into a 0-500 air quality
// index and derives the severity band metadata attached to every reading.
package aqi

import "math"

// breakpoint is one segment of the piecewise-linear PM2.5 to index mapping.
type breakpoint struct {
	pmLo, pmHi   float64
	idxLo, idxHi int
}

var breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.0, 35.4, 51, 100},
	{35.4, 55.4, 101, 150},
	{55.4, 150.4, 151, 200},
	{150.4, 250.4, 201, 300},
	{250.4, 500.4, 301, 500},
}

// ToIndex maps a PM2.5 concentration (µg/m³) to the 0-500 index using
// linear interpolation within each breakpoint segment.
func ToIndex(pm25 float64) int {
	if pm25 <= 0 {
		return 0
	}
	if pm25 >= 500.4 {
		return 500
	}

	for _, bp := range breakpoints {
		if pm25 <= bp.pmHi {
			ratio := float64(bp.idxHi-bp.idxLo) / (bp.pmHi - bp.pmLo)
			return int(math.Round(ratio*(pm25-bp.pmLo) + float64(bp.idxLo)))
		}
	}
	return 500
}

// Band describes the severity band for an index value.
type Band struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	Zone     string `json:"zone"`
	Risk     string `json:"risk"`
}

// The band table is fixed for client compatibility; labels and colors
// must not change.
var bands = []struct {
	max  int
	band Band
}{
	{50, Band{Category: "Good", Color: "#00e400", Icon: "😊", Zone: "good", Risk: "Low"}},
	{100, Band{Category: "Moderate", Color: "#ffff00", Icon: "😐", Zone: "moderate", Risk: "Moderate"}},
	{150, Band{Category: "Unhealthy for Sensitive", Color: "#ff7e00", Icon: "😷", Zone: "unhealthy_sensitive", Risk: "High"}},
	{200, Band{Category: "Unhealthy", Color: "#ff0000", Icon: "🤢", Zone: "unhealthy", Risk: "Very High"}},
	{300, Band{Category: "Very Unhealthy", Color: "#8f3f97", Icon: "😵", Zone: "very_unhealthy", Risk: "Severe"}},
}

var hazardousBand = Band{Category: "Hazardous", Color: "#7e0023", Icon: "☠️", Zone: "hazardous", Risk: "Extreme"}

// Categorize returns the severity band for an index value. Band upper
// bounds are inclusive; anything above 300 is Hazardous.
func Categorize(index int) Band {
	for _, b := range bands {
		if index <= b.max {
			return b.band
		}
	}
	return hazardousBand
}
