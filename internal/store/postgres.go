package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MinIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	minIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MIN_IDLE_CONNS", "2"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "5m"))

	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "airlens"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:        getEnvOrDefault("DB_NAME", "airlens"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		MaxOpenConns:    maxOpen,
		MinIdleConns:    minIdle,
		ConnMaxLifetime: lifetime,
	}
}

// ConnectionString returns the PostgreSQL connection string.
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Connect creates a database connection pool and verifies it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns) //nolint:gosec // bounded by config validation
	poolConfig.MinConns = int32(cfg.MinIdleConns) //nolint:gosec // bounded by config validation
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
