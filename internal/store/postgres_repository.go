package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airlens/airlens/internal/heatmap"
)

// PostgresRepository is a PostgreSQL implementation of ReadingRepository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL reading repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert persists one reading.
func (r *PostgresRepository) Insert(ctx context.Context, record *ReadingRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	query := `
		INSERT INTO readings (
			id, region, city, lat, lon,
			pm25, index, category, confidence, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.Region,
		record.City,
		record.Lat,
		record.Lon,
		record.PM25,
		record.Index,
		record.Category,
		record.Confidence,
		record.RecordedAt,
	)
	return err
}

// LatestByRegion returns the most recent readings for a region.
func (r *PostgresRepository) LatestByRegion(ctx context.Context, region string, limit int) ([]ReadingRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			id, region, city, lat, lon,
			pm25, index, category, confidence, recorded_at
		FROM readings
		WHERE region = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, region, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ReadingRecord
	for rows.Next() {
		var rec ReadingRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Region,
			&rec.City,
			&rec.Lat,
			&rec.Lon,
			&rec.PM25,
			&rec.Index,
			&rec.Category,
			&rec.Confidence,
			&rec.RecordedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, ErrNoReadings
	}
	return records, nil
}

// PostgresGridRepository is a PostgreSQL implementation of GridRepository.
// Grids are stored whole as JSON, one row per region.
type PostgresGridRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresGridRepository creates a PostgreSQL grid repository.
func NewPostgresGridRepository(pool *pgxpool.Pool) *PostgresGridRepository {
	return &PostgresGridRepository{pool: pool}
}

// SaveGrid upserts the latest grid for its region.
func (r *PostgresGridRepository) SaveGrid(ctx context.Context, grid *heatmap.Grid) error {
	payload, err := json.Marshal(grid)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO region_grids (region, payload, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (region) DO UPDATE
		SET payload = EXCLUDED.payload, generated_at = EXCLUDED.generated_at
	`

	_, err = r.pool.Exec(ctx, query, grid.Region, payload, grid.GeneratedAt)
	return err
}

// LatestGrid returns the persisted grid for a region.
func (r *PostgresGridRepository) LatestGrid(ctx context.Context, region string) (*heatmap.Grid, error) {
	var payload []byte
	query := `SELECT payload FROM region_grids WHERE region = $1`

	err := r.pool.QueryRow(ctx, query, region).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoGrid
	}
	if err != nil {
		return nil, err
	}

	var grid heatmap.Grid
	if err := json.Unmarshal(payload, &grid); err != nil {
		return nil, err
	}
	return &grid, nil
}
