// Package handler provides HTTP handlers for the AirLens API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/airlens/airlens/internal/api/models"
	"github.com/airlens/airlens/internal/geo"
)

// coordinateParams extracts a lat/lon pair from query parameters.
// Returns field errors instead of a coordinate when parsing or range
// validation fails.
func coordinateParams(r *http.Request, latKey, lonKey string) (geo.Coordinate, []models.FieldError) {
	var fieldErrors []models.FieldError

	lat, err := parseFloatParam(r, latKey)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: latKey, Message: "must be a number"})
	} else if lat < -90 || lat > 90 {
		fieldErrors = append(fieldErrors, models.FieldError{Field: latKey, Message: "must be between -90 and 90"})
	}

	lon, err := parseFloatParam(r, lonKey)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: lonKey, Message: "must be a number"})
	} else if lon < -180 || lon > 180 {
		fieldErrors = append(fieldErrors, models.FieldError{Field: lonKey, Message: "must be between -180 and 180"})
	}

	if len(fieldErrors) > 0 {
		return geo.Coordinate{}, fieldErrors
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, nil
}

func parseFloatParam(r *http.Request, key string) (float64, error) {
	return strconv.ParseFloat(r.URL.Query().Get(key), 64)
}

// intParam parses an optional integer query parameter, falling back to
// def when absent. A malformed value reports ok=false.
func intParam(r *http.Request, key string, def int) (value int, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
