// Package store persists fused readings produced by the refresh worker
// for later trend queries.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/airlens/airlens/internal/fusion"
	"github.com/airlens/airlens/internal/heatmap"
)

// ErrNoReadings is returned when a region has no stored readings yet.
var ErrNoReadings = errors.New("no stored readings")

// ErrNoGrid is returned when a region has no persisted grid yet.
var ErrNoGrid = errors.New("no stored grid")

// ReadingRecord is one persisted city reading.
type ReadingRecord struct {
	ID         string    `json:"id"`
	Region     string    `json:"region"`
	City       string    `json:"city"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	PM25       float64   `json:"pm25"`
	Index      int       `json:"index"`
	Category   string    `json:"category"`
	Confidence int       `json:"confidence"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RecordFromReading flattens a fused reading into its stored form.
func RecordFromReading(region, city string, r *fusion.Reading) ReadingRecord {
	return ReadingRecord{
		Region:     region,
		City:       city,
		Lat:        r.Location.Lat,
		Lon:        r.Location.Lon,
		PM25:       r.PM25,
		Index:      r.Index,
		Category:   r.Category,
		Confidence: r.Confidence,
		RecordedAt: r.Timestamp,
	}
}

// ReadingRepository stores and retrieves city readings.
type ReadingRepository interface {
	// Insert persists one reading, assigning its ID.
	Insert(ctx context.Context, record *ReadingRecord) error

	// LatestByRegion returns the most recent readings for a region,
	// newest first, up to limit.
	LatestByRegion(ctx context.Context, region string, limit int) ([]ReadingRecord, error)
}

// GridRepository stores the latest interpolated grid per region. The
// refresh worker writes, the heatmap endpoint reads.
type GridRepository interface {
	// SaveGrid persists a region grid, replacing any previous one.
	SaveGrid(ctx context.Context, grid *heatmap.Grid) error

	// LatestGrid returns the most recent grid for a region, or
	// ErrNoGrid when none has been persisted.
	LatestGrid(ctx context.Context, region string) (*heatmap.Grid, error)
}
