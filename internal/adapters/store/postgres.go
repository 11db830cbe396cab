package store

import (
	"context"
	"fmt"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Postgres backs match logging and the user directory.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and pings. maxConns <= 0 keeps the pgx default.
func NewPostgres(ctx context.Context, url string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCollaboratorUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", core.ErrCollaboratorUnavailable, err)
	}
	log.Info().Str("module", "store.postgres").Int32("max_conns", cfg.MaxConns).Msg("connected")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }
