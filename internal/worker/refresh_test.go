package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/store"
	"github.com/airlens/airlens/internal/worker"
)

// fixedAir serves a constant PM2.5 to every coordinate, optionally
// failing specific ones.
type fixedAir struct {
	mu     sync.Mutex
	pm     float64
	failAt map[geo.Coordinate]bool
}

func (s *fixedAir) Name() string { return "fixed-air" }
func (s *fixedAir) FetchAir(_ context.Context, coord geo.Coordinate) (*fusion.AirSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt[coord] {
		return nil, errors.New("station offline")
	}
	pm := s.pm
	return &fusion.AirSample{PM25: &pm, Source: "fixed-air"}, nil
}

func totalCities() int {
	n := 0
	for _, r := range geo.Regions() {
		n += len(r.Cities)
	}
	return n
}

func newJob(air fusion.AirQualitySource, repo store.ReadingRepository, grids store.GridRepository) *worker.RefreshJob {
	engine := fusion.NewEngine(fusion.EngineConfig{AirQuality: air, Logger: zerolog.Nop()})
	return worker.NewRefreshJob(worker.RefreshJobConfig{
		Logger:   zerolog.Nop(),
		Engine:   engine,
		Readings: repo,
		Grids:    grids,
	})
}

func TestRefreshJob_Run(t *testing.T) {
	repo := store.NewMemoryRepository()
	grids := store.NewMemoryGridRepository()
	job := newJob(&fixedAir{pm: 120}, repo, grids)

	result := job.Run(context.Background())

	assert.Equal(t, totalCities(), result.Successful)
	assert.Zero(t, result.Failed)
	assert.Equal(t, len(geo.Regions()), result.Grids)

	// Every region now has persisted readings and a persisted grid.
	for _, region := range geo.Regions() {
		records, err := repo.LatestByRegion(context.Background(), region.ID, 0)
		require.NoError(t, err)
		assert.Len(t, records, len(region.Cities))

		grid, err := grids.LatestGrid(context.Background(), region.ID)
		require.NoError(t, err)
		assert.Equal(t, len(region.Cities), grid.SampleCount)
	}

	metrics := job.Metrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(totalCities()), metrics.CitiesRefreshed)
}

func TestRefreshJob_ToleratesCityFailures(t *testing.T) {
	region, _ := geo.RegionByID("delhi")
	failAt := map[geo.Coordinate]bool{region.Cities[0].Point: true}

	repo := store.NewMemoryRepository()
	grids := store.NewMemoryGridRepository()
	job := newJob(&fixedAir{pm: 90, failAt: failAt}, repo, grids)

	result := job.Run(context.Background())

	assert.Equal(t, totalCities()-1, result.Successful)
	assert.Equal(t, 1, result.Failed)

	// The region grid still regenerates from the surviving cities.
	grid, err := grids.LatestGrid(context.Background(), "delhi")
	require.NoError(t, err)
	assert.Equal(t, len(region.Cities)-1, grid.SampleCount)
}

func TestRefreshJob_NoSinksConfigured(t *testing.T) {
	job := newJob(&fixedAir{pm: 50}, nil, nil)

	result := job.Run(context.Background())
	assert.Equal(t, totalCities(), result.Successful)
	assert.Zero(t, result.Grids)
}
