package heatmap

import (
	"sync"
	"time"

	"github.com/airlens/airlens/internal/aqi"
	"github.com/airlens/airlens/internal/geo"
)

// gridDensity is the number of rows and columns in a generated grid.
const gridDensity = 30

// Cell is one interpolated grid point.
type Cell struct {
	Point geo.Coordinate `json:"point"`
	PM25  float64        `json:"pm25"`
	Index int            `json:"index"`
	Color string         `json:"color"`
	Zone  string         `json:"zone"`
}

// Grid is a dense interpolated surface over one region's bounds.
type Grid struct {
	Region      string    `json:"region"`
	Density     int       `json:"density"`
	Cells       []Cell    `json:"cells"`
	SampleCount int       `json:"sample_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Generate interpolates a density×density grid over the region bounds
// from the given samples.
func Generate(region geo.Region, samples []Sample) *Grid {
	latStep := (region.Bounds.LatMax - region.Bounds.LatMin) / float64(gridDensity-1)
	lonStep := (region.Bounds.LonMax - region.Bounds.LonMin) / float64(gridDensity-1)

	cells := make([]Cell, 0, gridDensity*gridDensity)
	for i := 0; i < gridDensity; i++ {
		lat := region.Bounds.LatMin + float64(i)*latStep
		if i == gridDensity-1 {
			lat = region.Bounds.LatMax
		}
		for j := 0; j < gridDensity; j++ {
			lon := region.Bounds.LonMin + float64(j)*lonStep
			if j == gridDensity-1 {
				lon = region.Bounds.LonMax
			}
			point := geo.Coordinate{Lat: lat, Lon: lon}

			pm := Interpolate(point, samples)
			index := aqi.ToIndex(pm)
			band := aqi.Categorize(index)

			cells = append(cells, Cell{
				Point: point,
				PM25:  pm,
				Index: index,
				Color: band.Color,
				Zone:  band.Zone,
			})
		}
	}

	return &Grid{
		Region:      region.ID,
		Density:     gridDensity,
		Cells:       cells,
		SampleCount: len(samples),
		GeneratedAt: time.Now().UTC(),
	}
}

// Cache holds the latest grid per region. The refresh worker writes,
// the heatmap endpoint reads.
type Cache struct {
	mu    sync.RWMutex
	grids map[string]*Grid
}

// NewCache creates an empty grid cache.
func NewCache() *Cache {
	return &Cache{grids: make(map[string]*Grid)}
}

// Put stores the latest grid for its region.
func (c *Cache) Put(grid *Grid) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grids[grid.Region] = grid
}

// Get returns the latest grid for a region, or false when none has been
// generated yet.
func (c *Cache) Get(region string) (*Grid, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	grid, ok := c.grids[region]
	return grid, ok
}
