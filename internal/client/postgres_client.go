package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"session-service/internal/config"
	"session-service/internal/util"
)

// PostgresClient wraps a pgx connection pool for the session store.
type PostgresClient struct {
	Pool   *pgxpool.Pool
	config *config.DatabaseConfig
}

// NewPostgresClient opens a connection pool against DATABASE_URL and
// verifies connectivity.
func NewPostgresClient(cfg *config.Config, logger *zap.Logger) (*PostgresClient, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	util.Info("Postgres client initialized",
		zap.Int("max_conns", cfg.Database.MaxConns))

	return &PostgresClient{
		Pool:   pool,
		config: &cfg.Database,
	}, nil
}

// HealthCheck verifies database connectivity.
func (p *PostgresClient) HealthCheck(ctx context.Context) error {
	if err := p.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresClient) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		util.Info("Postgres client closed")
	}
}
