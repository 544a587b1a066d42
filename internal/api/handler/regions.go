package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/airlens/airlens/internal/api/response"
	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/heatmap"
	"github.com/airlens/airlens/internal/store"
)

// RegionsHandler serves the region catalogue and per-region aggregates.
type RegionsHandler struct {
	engine    *fusion.Engine
	grids     *heatmap.Cache
	gridStore store.GridRepository
	readings  store.ReadingRepository
}

// NewRegionsHandler creates a new RegionsHandler.
func NewRegionsHandler(engine *fusion.Engine, grids *heatmap.Cache, gridStore store.GridRepository, readings store.ReadingRepository) *RegionsHandler {
	return &RegionsHandler{engine: engine, grids: grids, gridStore: gridStore, readings: readings}
}

// ListRegions handles GET /v1/regions - the supported region catalogue.
func (h *RegionsHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"regions": geo.Regions(),
	})
}

// GetZones handles GET /v1/regions/{region}/zones - concentric ring polygons.
func (h *RegionsHandler) GetZones(w http.ResponseWriter, r *http.Request) {
	region, ok := geo.RegionByID(chi.URLParam(r, "region"))
	if !ok {
		response.BadRequest(w, r, "unsupported region", nil)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"region": region.ID,
		"zones":  geo.Zones(region),
	})
}

// GetHotspots handles GET /v1/regions/{region}/hotspots - catalogue cities
// ranked by PM2.5. Cities whose fusion failed are omitted.
func (h *RegionsHandler) GetHotspots(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "region")

	hotspots, err := h.engine.Hotspots(r.Context(), regionID)
	if err != nil {
		if errors.Is(err, geo.ErrUnsupportedRegion) {
			response.BadRequest(w, r, "unsupported region", nil)
			return
		}
		response.InternalError(w, r, "failed to rank hotspots")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=120")
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"region":   regionID,
		"hotspots": hotspots,
	})
}

// GetSensors handles GET /v1/regions/{region}/sensors - one virtual sensor
// per catalogue city. Failing cities appear with an offline status.
func (h *RegionsHandler) GetSensors(w http.ResponseWriter, r *http.Request) {
	regionID := chi.URLParam(r, "region")

	sensors, err := h.engine.Sensors(r.Context(), regionID)
	if err != nil {
		if errors.Is(err, geo.ErrUnsupportedRegion) {
			response.BadRequest(w, r, "unsupported region", nil)
			return
		}
		response.InternalError(w, r, "failed to read sensors")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=120")
	response.JSON(w, r, http.StatusOK, map[string]interface{}{
		"region":  regionID,
		"sensors": sensors,
	})
}

// GetHeatmap handles GET /v1/regions/{region}/heatmap - the interpolated
// pollution grid. Served from the local cache when warm, then from the
// grid the refresh worker last persisted, rebuilt from the latest
// persisted readings as a last resort.
func (h *RegionsHandler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	region, ok := geo.RegionByID(chi.URLParam(r, "region"))
	if !ok {
		response.BadRequest(w, r, "unsupported region", nil)
		return
	}

	if h.grids != nil {
		if grid, ok := h.grids.Get(region.ID); ok {
			w.Header().Set("Cache-Control", "public, max-age=120")
			response.JSON(w, r, http.StatusOK, grid)
			return
		}
	}

	if h.gridStore != nil {
		if grid, err := h.gridStore.LatestGrid(r.Context(), region.ID); err == nil {
			if h.grids != nil {
				h.grids.Put(grid)
			}
			w.Header().Set("Cache-Control", "public, max-age=120")
			response.JSON(w, r, http.StatusOK, grid)
			return
		}
	}

	grid, err := h.rebuildGrid(r, region)
	if err != nil {
		if errors.Is(err, store.ErrNoReadings) {
			response.ServiceUnavailable(w, r, "no readings available for this region yet")
			return
		}
		response.InternalError(w, r, "failed to build heatmap")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=120")
	response.JSON(w, r, http.StatusOK, grid)
}

// rebuildGrid regenerates a region grid from the most recent persisted
// reading per city and re-primes the cache.
func (h *RegionsHandler) rebuildGrid(r *http.Request, region geo.Region) (*heatmap.Grid, error) {
	if h.readings == nil {
		return nil, store.ErrNoReadings
	}

	records, err := h.readings.LatestByRegion(r.Context(), region.ID, len(region.Cities))
	if err != nil {
		return nil, err
	}

	samples := make([]heatmap.Sample, 0, len(records))
	for _, rec := range records {
		samples = append(samples, heatmap.Sample{
			Point: geo.Coordinate{Lat: rec.Lat, Lon: rec.Lon},
			Value: rec.PM25,
		})
	}

	grid := heatmap.Generate(region, samples)
	if h.grids != nil {
		h.grids.Put(grid)
	}
	return grid, nil
}
