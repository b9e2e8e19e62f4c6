// Package pg implementa IdentityRepository sobre PostgreSQL.
// Usa pgxpool directamente; la tabla es social_identity.
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options configura el pool de conexiones.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Repo es el repositorio de identidades sociales sobre PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// Connect crea el pool y verifica la conexión.
func Connect(ctx context.Context, dsn string, opts Options) (*Repo, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(opts.MaxOpenConns)
	} else {
		poolCfg.MaxConns = 10
	}
	if opts.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(opts.MaxIdleConns)
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}

	return &Repo{pool: pool}, nil
}

// NewWithPool crea el repositorio sobre un pool existente.
func NewWithPool(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Pool expone el pool subyacente (para migraciones y health checks).
func (r *Repo) Pool() *pgxpool.Pool { return r.pool }

// Close cierra el pool.
func (r *Repo) Close() { r.pool.Close() }
