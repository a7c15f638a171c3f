package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the postgres-backed implementation of the backend operations the
// appointment lifecycle consumes.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
