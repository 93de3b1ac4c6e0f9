// Package database is the read-side PostgreSQL access used outside the GORM
// managers: the public validation lookup, bound-entity attributes and health.
package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// GetPublicDocument returns the public summary of the document holding
	// code, or apperr.ErrNotFound.
	GetPublicDocument(ctx context.Context, code string) (*PublicDocument, error)

	// EntityAttributes returns the bindable attributes of a lead.
	EntityAttributes(ctx context.Context, entityID string) (map[string]string, error)

	// Close terminates the database connection pool.
	Close()
}

type service struct {
	pool *pgxpool.Pool
}

// New opens a pgx pool against dsn and verifies the connection.
func New(ctx context.Context, dsn string) (Service, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &service{pool: pool}, nil
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	poolStats := s.pool.Stat()
	stats["total_connections"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["in_use"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["idle"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["max_connections"] = strconv.Itoa(int(poolStats.MaxConns()))
	stats["acquire_count"] = strconv.FormatInt(poolStats.AcquireCount(), 10)
	stats["empty_acquire_count"] = strconv.FormatInt(poolStats.EmptyAcquireCount(), 10)

	if poolStats.AcquiredConns() >= poolStats.MaxConns() {
		stats["message"] = "The database is experiencing heavy load."
	}
	if poolStats.EmptyAcquireCount() > 1000 {
		stats["message"] = "The database has a high number of waits, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection pool.
func (s *service) Close() {
	s.pool.Close()
}
