package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/api"
	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/heatmap"
	"github.com/airlens/airlens/internal/route"
	"github.com/airlens/airlens/internal/sim"
	"github.com/airlens/airlens/internal/store"
)

// stubAir serves a fixed PM2.5 everywhere, or fails when down.
type stubAir struct {
	pm   float64
	down bool
}

func (s *stubAir) Name() string { return "stub-air" }
func (s *stubAir) FetchAir(context.Context, geo.Coordinate) (*fusion.AirSample, error) {
	if s.down {
		return nil, errors.New("feed down")
	}
	pm := s.pm
	return &fusion.AirSample{PM25: &pm, Source: "stub-air"}, nil
}

func newRouter(t *testing.T, air fusion.AirQualitySource) (*httptest.Server, store.ReadingRepository, *heatmap.Cache, *store.MemoryGridRepository) {
	t.Helper()

	engine := fusion.NewEngine(fusion.EngineConfig{AirQuality: air, Logger: zerolog.Nop()})
	repo := store.NewMemoryRepository()
	grids := heatmap.NewCache()
	gridStore := store.NewMemoryGridRepository()

	router := api.NewRouter(api.RouterConfig{
		Version:      "test",
		BuildTime:    "now",
		Logger:       zerolog.Nop(),
		FusionEngine: engine,
		RouteEngine:  route.NewEngine(engine, zerolog.Nop()),
		Simulations: sim.NewRegistry(sim.RegistryConfig{
			Logger:       zerolog.Nop(),
			TickInterval: 2 * time.Millisecond,
			Seed:         7,
		}),
		Heatmaps: grids,
		Grids:    gridStore,
		Readings: repo,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, repo, grids, gridStore
}

func getJSON(t *testing.T, server *httptest.Server, path string, out interface{}) *http.Response {
	t.Helper()

	resp, err := server.Client().Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestRouter_HealthAndStatus(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var health map[string]interface{}
	resp := getJSON(t, server, "/v1/ops/health", &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", health["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = getJSON(t, server, "/v1/ops/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status map[string]interface{}
	resp = getJSON(t, server, "/v1/ops/status", &status)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", status["status"])
}

func TestRouter_GetReading(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var reading map[string]interface{}
	resp := getJSON(t, server, "/v1/readings?lat=28.6139&lon=77.2090", &reading)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delhi", reading["region"])
	assert.InDelta(t, 60, reading["pm25"], 0.001)
	assert.NotEmpty(t, reading["category"])
	assert.NotEmpty(t, reading["forecast"])
}

func TestRouter_GetReading_InvalidCoordinate(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var problem map[string]interface{}
	resp := getJSON(t, server, "/v1/readings?lat=not-a-number&lon=77.2", &problem)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, problem["errors"])
}

func TestRouter_GetReading_AllFeedsDown(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{down: true})

	resp := getJSON(t, server, "/v1/readings?lat=28.6139&lon=77.2090", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouter_GetForecast(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var forecast struct {
		Region       string                   `json:"region"`
		HorizonHours int                      `json:"horizon_hours"`
		StepHours    int                      `json:"step_hours"`
		Points       []map[string]interface{} `json:"points"`
	}
	resp := getJSON(t, server, "/v1/forecast?lat=28.6139&lon=77.2090", &forecast)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delhi", forecast.Region)
	assert.Equal(t, 24, forecast.HorizonHours)
	assert.Equal(t, 3, forecast.StepHours)
	assert.Len(t, forecast.Points, 8)
}

func TestRouter_GetForecast_ClampsHorizon(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var forecast struct {
		HorizonHours int                      `json:"horizon_hours"`
		Points       []map[string]interface{} `json:"points"`
	}
	resp := getJSON(t, server, "/v1/forecast?lat=28.6&lon=77.2&hours=96", &forecast)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 72, forecast.HorizonHours)
	assert.Len(t, forecast.Points, 8)
}

func TestRouter_GetForecast_RejectsBadHours(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	resp := getJSON(t, server, "/v1/forecast?lat=28.6&lon=77.2&hours=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_CompareRoutes(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 80})

	var comparison struct {
		Direct struct {
			Path []geo.Coordinate `json:"path"`
		} `json:"direct"`
		Safe struct {
			Path []geo.Coordinate `json:"path"`
		} `json:"safe"`
		ExposureReduction float64 `json:"exposure_reduction_percent"`
	}
	resp := getJSON(t, server,
		"/v1/routes/compare?start_lat=28.6139&start_lon=77.2090&end_lat=28.5704&end_lon=77.0653",
		&comparison)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, comparison.Direct.Path, 21)
	assert.Len(t, comparison.Safe.Path, 21)
	assert.InDelta(t, 15.0, comparison.ExposureReduction, 0.001)
}

func TestRouter_CompareRoutes_UnsupportedEndpoint(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 80})

	// London is outside every supported region.
	resp := getJSON(t, server,
		"/v1/routes/compare?start_lat=51.5&start_lon=-0.12&end_lat=28.6&end_lon=77.2", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_CompareRoutes_FeedsDown(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{down: true})

	resp := getJSON(t, server,
		"/v1/routes/compare?start_lat=28.6139&start_lon=77.2090&end_lat=28.5704&end_lon=77.0653", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRouter_Regions(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var payload struct {
		Regions []geo.Region `json:"regions"`
	}
	resp := getJSON(t, server, "/v1/regions", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload.Regions, 2)
	assert.Equal(t, "delhi", payload.Regions[0].ID)
	assert.Equal(t, "maharashtra", payload.Regions[1].ID)
}

func TestRouter_Zones(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	var payload struct {
		Zones []geo.ZonePolygon `json:"zones"`
	}
	resp := getJSON(t, server, "/v1/regions/delhi/zones", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload.Zones, 6)
	assert.Len(t, payload.Zones[0].Points, 13)
	assert.Empty(t, payload.Zones[5].Points)

	resp = getJSON(t, server, "/v1/regions/karnataka/zones", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Hotspots(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 90})

	var payload struct {
		Hotspots []fusion.Hotspot `json:"hotspots"`
	}
	resp := getJSON(t, server, "/v1/regions/delhi/hotspots", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, payload.Hotspots)
	assert.Equal(t, 1, payload.Hotspots[0].Rank)
}

func TestRouter_Sensors(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 90})

	var payload struct {
		Sensors []fusion.Sensor `json:"sensors"`
	}
	resp := getJSON(t, server, "/v1/regions/maharashtra/sensors", &payload)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, payload.Sensors, 5)
	assert.Equal(t, "maharashtra-mumbai", payload.Sensors[0].ID)
}

func TestRouter_Heatmap_FromCache(t *testing.T) {
	server, _, grids, _ := newRouter(t, &stubAir{pm: 90})

	region, _ := geo.RegionByID("delhi")
	grids.Put(heatmap.Generate(region, []heatmap.Sample{
		{Point: region.Center, Value: 140},
	}))

	var grid heatmap.Grid
	resp := getJSON(t, server, "/v1/regions/delhi/heatmap", &grid)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delhi", grid.Region)
	assert.Len(t, grid.Cells, 900)
}

func TestRouter_Heatmap_FromPersistedGrid(t *testing.T) {
	server, _, _, gridStore := newRouter(t, &stubAir{pm: 90})

	// A grid persisted by the refresh worker is served even when the
	// local cache is cold.
	region, _ := geo.RegionByID("maharashtra")
	persisted := heatmap.Generate(region, []heatmap.Sample{
		{Point: region.Center, Value: 110},
	})
	require.NoError(t, gridStore.SaveGrid(context.Background(), persisted))

	var grid heatmap.Grid
	resp := getJSON(t, server, "/v1/regions/maharashtra/heatmap", &grid)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "maharashtra", grid.Region)
	assert.Equal(t, 1, grid.SampleCount)
	assert.Len(t, grid.Cells, 900)
}

func TestRouter_Heatmap_RebuildsFromStore(t *testing.T) {
	server, repo, _, _ := newRouter(t, &stubAir{pm: 90})

	region, _ := geo.RegionByID("delhi")
	record := store.ReadingRecord{
		Region: "delhi", City: "New Delhi",
		Lat: region.Center.Lat, Lon: region.Center.Lon,
		PM25: 150, Index: 199, Category: "Unhealthy",
		RecordedAt: time.Now(),
	}
	require.NoError(t, repo.Insert(context.Background(), &record))

	var grid heatmap.Grid
	resp := getJSON(t, server, "/v1/regions/delhi/heatmap", &grid)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, grid.SampleCount)
}

func TestRouter_Heatmap_NoReadings(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 90})

	resp := getJSON(t, server, "/v1/regions/maharashtra/heatmap", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func createSimulation(t *testing.T, server *httptest.Server) sim.Snapshot {
	t.Helper()

	body := bytes.NewBufferString(`{
		"start": {"lat": 28.6139, "lon": 77.2090},
		"end": {"lat": 28.5704, "lon": 77.0653},
		"route_type": "safe"
	}`)
	resp, err := server.Client().Post(server.URL+"/v1/simulations", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var snapshot sim.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	assert.Equal(t, "/v1/simulations/"+snapshot.ID, resp.Header.Get("Location"))
	return snapshot
}

func TestRouter_SimulationLifecycle(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	snapshot := createSimulation(t, server)
	assert.Equal(t, "safe", snapshot.RouteType)
	assert.Equal(t, 21, snapshot.TotalSteps)
	assert.True(t, snapshot.Active)

	var fetched sim.Snapshot
	resp := getJSON(t, server, "/v1/simulations/"+snapshot.ID, &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snapshot.ID, fetched.ID)

	resp = getJSON(t, server, "/v1/simulations/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_SimulationMissingBody(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	resp, err := server.Client().Post(server.URL+"/v1/simulations", "application/json",
		strings.NewReader(`{"route_type":"safe"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func TestRouter_SimulationStream(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})
	snapshot := createSimulation(t, server)

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(server, "/v1/simulations/"+snapshot.ID+"/stream"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var frames []sim.Message
	for {
		var frame sim.Message
		require.NoError(t, conn.ReadJSON(&frame))
		frames = append(frames, frame)
		if frame.Type == sim.MessageCompleted {
			break
		}
	}

	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, sim.MessageInit, frames[0].Type)
	assert.Equal(t, snapshot.ID, frames[0].SessionID)
	assert.Equal(t, sim.MessageUpdate, frames[1].Type)

	final := frames[len(frames)-1]
	assert.Equal(t, 100, final.Progress)
	assert.Len(t, final.Samples, snapshot.TotalSteps-1)

	// Completion removes the session.
	resp2 := getJSON(t, server, "/v1/simulations/"+snapshot.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestRouter_SimulationStream_UnknownSession(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsURL(server, "/v1/simulations/ghost/stream"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var frame sim.Message
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, sim.MessageError, frame.Type)
	assert.Equal(t, "ghost", frame.SessionID)
	assert.NotEmpty(t, frame.Error)
}

func TestRouter_UnknownPathReturns404(t *testing.T) {
	server, _, _, _ := newRouter(t, &stubAir{pm: 60})

	resp := getJSON(t, server, "/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
