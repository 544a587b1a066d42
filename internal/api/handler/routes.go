package handler

import (
	"errors"
	"net/http"

	"github.com/airlens/airlens/internal/api/models"
	"github.com/airlens/airlens/internal/api/response"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/route"
)

// RoutesHandler serves route exposure comparisons.
type RoutesHandler struct {
	engine *route.Engine
}

// NewRoutesHandler creates a new RoutesHandler.
func NewRoutesHandler(engine *route.Engine) *RoutesHandler {
	return &RoutesHandler{engine: engine}
}

// CompareRoutes handles GET /v1/routes/compare - direct vs low-exposure path.
func (h *RoutesHandler) CompareRoutes(w http.ResponseWriter, r *http.Request) {
	start, startErrors := coordinateParams(r, "start_lat", "start_lon")
	end, endErrors := coordinateParams(r, "end_lat", "end_lon")
	if fieldErrors := append(startErrors, endErrors...); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid route endpoints", fieldErrors)
		return
	}

	comparison, err := h.engine.Compare(r.Context(), start, end)
	if err != nil {
		switch {
		case errors.Is(err, geo.ErrUnsupportedRegion):
			response.BadRequest(w, r, "route endpoints must lie inside a supported region", []models.FieldError{
				{Field: "start_lat", Message: "endpoint outside supported regions"},
				{Field: "end_lat", Message: "endpoint outside supported regions"},
			})
		case errors.Is(err, route.ErrUpstreamUnavailable):
			response.BadGateway(w, r, "upstream air quality feeds unavailable")
		default:
			response.InternalError(w, r, "failed to compare routes")
		}
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, comparison)
}
