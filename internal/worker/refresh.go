// Package worker provides the background refresh job that keeps stored
// readings and heatmap grids current.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/geo"
	"github.com/airlens/airlens/internal/heatmap"
	"github.com/airlens/airlens/internal/store"
)

// RefreshConfig holds tuning for the refresh job.
type RefreshConfig struct {
	// Concurrency is the number of cities fused at once (default: 3).
	Concurrency int

	// Timeout bounds the fusion work for one city (default: 30s).
	Timeout time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config   RefreshConfig
	Logger   zerolog.Logger
	Engine   *fusion.Engine
	Readings store.ReadingRepository
	Grids    store.GridRepository
}

// RefreshJob fuses every catalogue city, persists the readings and
// regenerates each region's heatmap grid.
type RefreshJob struct {
	config   RefreshConfig
	logger   zerolog.Logger
	engine   *fusion.Engine
	readings store.ReadingRepository
	grids    store.GridRepository

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns       int64
	CitiesRefreshed int64
	CitiesFailed    int64
	GridsGenerated  int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
}

// NewRefreshJob creates a refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Concurrency == 0 {
		config.Concurrency = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:   config,
		logger:   cfg.Logger,
		engine:   cfg.Engine,
		readings: cfg.Readings,
		grids:    cfg.Grids,
		metrics:  &RefreshMetrics{},
	}
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	StartTime  time.Time
	Duration   time.Duration
	Successful int
	Failed     int
	Grids      int
}

// cityTask is one unit of refresh work.
type cityTask struct {
	region geo.Region
	city   geo.City
}

type cityOutcome struct {
	task    cityTask
	reading *fusion.Reading
	err     error
}

// Run refreshes every region. City failures are tolerated; a region's
// grid is regenerated from whichever cities answered.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	start := time.Now()
	result := &RefreshResult{StartTime: start}

	var tasks []cityTask
	for _, region := range geo.Regions() {
		for _, city := range region.Cities {
			tasks = append(tasks, cityTask{region: region, city: city})
		}
	}

	j.logger.Info().
		Int("cities", len(tasks)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting refresh job")

	taskChan := make(chan cityTask, len(tasks))
	outcomeChan := make(chan cityOutcome, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				outcomeChan <- j.refreshCity(ctx, task)
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(outcomeChan)
	}()

	samplesByRegion := make(map[string][]heatmap.Sample)
	for outcome := range outcomeChan {
		if outcome.err != nil {
			result.Failed++
			atomic.AddInt64(&j.metrics.CitiesFailed, 1)
			continue
		}
		result.Successful++
		atomic.AddInt64(&j.metrics.CitiesRefreshed, 1)

		samplesByRegion[outcome.task.region.ID] = append(
			samplesByRegion[outcome.task.region.ID],
			heatmap.Sample{Point: outcome.task.city.Point, Value: outcome.reading.PM25},
		)
	}

	result.Grids = j.regenerateGrids(ctx, samplesByRegion)

	result.Duration = time.Since(start)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("grids", result.Grids).
		Msg("refresh job completed")

	return result
}

// refreshCity fuses one city and persists the reading.
func (j *RefreshJob) refreshCity(ctx context.Context, task cityTask) cityOutcome {
	cityCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	reading, err := j.engine.FuseInRegion(cityCtx, task.city.Point, task.region.ID)
	if err != nil {
		j.logger.Warn().Err(err).
			Str("region", task.region.ID).
			Str("city", task.city.Name).
			Msg("city refresh failed")
		return cityOutcome{task: task, err: err}
	}

	if j.readings != nil {
		record := store.RecordFromReading(task.region.ID, task.city.Name, reading)
		if err := j.readings.Insert(cityCtx, &record); err != nil {
			j.logger.Error().Err(err).
				Str("city", task.city.Name).
				Msg("failed to persist reading")
		}
	}

	return cityOutcome{task: task, reading: reading}
}

// regenerateGrids rebuilds and persists the heatmap for every region
// that produced at least one sample.
func (j *RefreshJob) regenerateGrids(ctx context.Context, samplesByRegion map[string][]heatmap.Sample) int {
	if j.grids == nil {
		return 0
	}

	grids := 0
	for regionID, samples := range samplesByRegion {
		region, ok := geo.RegionByID(regionID)
		if !ok {
			continue
		}
		if err := j.grids.SaveGrid(ctx, heatmap.Generate(region, samples)); err != nil {
			j.logger.Error().Err(err).
				Str("region", regionID).
				Msg("failed to persist grid")
			continue
		}
		grids++
		atomic.AddInt64(&j.metrics.GridsGenerated, 1)
	}
	return grids
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LastRunAt = result.StartTime
	j.metrics.LastRunDuration = result.Duration
}

// Metrics returns a copy of the current metrics.
func (j *RefreshJob) Metrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		CitiesRefreshed: atomic.LoadInt64(&j.metrics.CitiesRefreshed),
		CitiesFailed:    atomic.LoadInt64(&j.metrics.CitiesFailed),
		GridsGenerated:  atomic.LoadInt64(&j.metrics.GridsGenerated),
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
	}
}
