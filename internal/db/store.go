// Package db is the persistence layer: a pgx/v5 connection pool plus one
// file per entity group of operations, grounded on the teacher's
// internal/db/postgres.go connect/transaction style.
package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore wraps a pgxpool.Pool. It carries no package-level state —
// every caller holds its own *PostgresStore, per the explicit-state
// redesign principle.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("db: unable to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("db: ping failed: %w", err)
	}
	log.Println("[db] connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying pool for subsystems that need raw access
// (workers running ad-hoc maintenance queries).
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}
