package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/airlens/airlens/internal/api/response"
	"github.com/airlens/airlens/internal/aqi"
	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
)

// Bounds for the standalone forecast endpoint: fixed 3-hour steps, at
// most 8 points, caller-specified horizon capped at 72h.
const (
	defaultForecastHorizonHours = 24
	forecastStepHours           = 3
	maxForecastHorizonHours     = 72
	maxForecastPoints           = 8
)

// ReadingsHandler serves fused point readings and standalone forecasts.
type ReadingsHandler struct {
	engine *fusion.Engine
}

// NewReadingsHandler creates a new ReadingsHandler.
func NewReadingsHandler(engine *fusion.Engine) *ReadingsHandler {
	return &ReadingsHandler{engine: engine}
}

// GetReading handles GET /v1/readings - fuse every feed at a coordinate.
func (h *ReadingsHandler) GetReading(w http.ResponseWriter, r *http.Request) {
	coord, fieldErrors := coordinateParams(r, "lat", "lon")
	if fieldErrors != nil {
		response.BadRequest(w, r, "invalid coordinate", fieldErrors)
		return
	}

	reading, err := h.engine.Fuse(r.Context(), coord)
	if err != nil {
		if errors.Is(err, fusion.ErrNoData) {
			response.ServiceUnavailable(w, r, "no air quality feed could serve this location")
			return
		}
		response.InternalError(w, r, "failed to fuse reading")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	response.JSON(w, r, http.StatusOK, reading)
}

// forecastResponse is the standalone forecast payload.
type forecastResponse struct {
	Location     geo.Coordinate      `json:"location"`
	Region       string              `json:"region"`
	PlaceName    string              `json:"place_name"`
	CurrentPM25  float64             `json:"current_pm25"`
	CurrentIndex int                 `json:"current_index"`
	HorizonHours int                 `json:"horizon_hours"`
	StepHours    int                 `json:"step_hours"`
	Points       []aqi.ForecastPoint `json:"points"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

// GetForecast handles GET /v1/forecast - bounded diurnal projection.
func (h *ReadingsHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	coord, fieldErrors := coordinateParams(r, "lat", "lon")
	if fieldErrors != nil {
		response.BadRequest(w, r, "invalid coordinate", fieldErrors)
		return
	}

	horizon, ok := intParam(r, "hours", defaultForecastHorizonHours)
	if !ok || horizon <= 0 {
		response.BadRequest(w, r, "hours must be a positive integer", nil)
		return
	}

	reading, points, err := h.engine.Forecast(r.Context(), coord, horizon, forecastStepHours,
		maxForecastHorizonHours, maxForecastPoints)
	if err != nil {
		if errors.Is(err, fusion.ErrNoData) {
			response.ServiceUnavailable(w, r, "no air quality feed could serve this location")
			return
		}
		response.InternalError(w, r, "failed to build forecast")
		return
	}

	if horizon > maxForecastHorizonHours {
		horizon = maxForecastHorizonHours
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, forecastResponse{
		Location:     reading.Location,
		Region:       reading.Region,
		PlaceName:    reading.PlaceName,
		CurrentPM25:  reading.PM25,
		CurrentIndex: reading.Index,
		HorizonHours: horizon,
		StepHours:    forecastStepHours,
		Points:       points,
		GeneratedAt:  time.Now().UTC(),
	})
}
