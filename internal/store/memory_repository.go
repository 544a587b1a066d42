package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/airlens/airlens/internal/heatmap"
)

// maxMemoryRecordsPerRegion bounds the in-memory ring per region.
const maxMemoryRecordsPerRegion = 1000

// MemoryRepository is an in-memory ReadingRepository, used when no
// database is configured and in tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	byRegion map[string][]ReadingRecord
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byRegion: make(map[string][]ReadingRecord)}
}

// Insert persists one reading.
func (r *MemoryRepository) Insert(_ context.Context, record *ReadingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	records := append(r.byRegion[record.Region], *record)
	if len(records) > maxMemoryRecordsPerRegion {
		records = records[len(records)-maxMemoryRecordsPerRegion:]
	}
	r.byRegion[record.Region] = records
	return nil
}

// LatestByRegion returns the most recent readings, newest first.
func (r *MemoryRepository) LatestByRegion(_ context.Context, region string, limit int) ([]ReadingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.byRegion[region]
	if len(records) == 0 {
		return nil, ErrNoReadings
	}
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	out := make([]ReadingRecord, 0, limit)
	for i := len(records) - 1; i >= len(records)-limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// MemoryGridRepository is an in-memory GridRepository, used when no
// database is configured and in tests.
type MemoryGridRepository struct {
	mu    sync.RWMutex
	grids map[string]*heatmap.Grid
}

// NewMemoryGridRepository creates an empty in-memory grid repository.
func NewMemoryGridRepository() *MemoryGridRepository {
	return &MemoryGridRepository{grids: make(map[string]*heatmap.Grid)}
}

// SaveGrid replaces the stored grid for its region.
func (r *MemoryGridRepository) SaveGrid(_ context.Context, grid *heatmap.Grid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grids[grid.Region] = grid
	return nil
}

// LatestGrid returns the stored grid for a region.
func (r *MemoryGridRepository) LatestGrid(_ context.Context, region string) (*heatmap.Grid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grid, ok := r.grids[region]
	if !ok {
		return nil, ErrNoGrid
	}
	return grid, nil
}
