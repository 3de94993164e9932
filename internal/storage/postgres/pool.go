package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewPool opens the pgx connection pool, applies the schema and closes the pool on shutdown.
func NewPool(lc fx.Lifecycle, cfg *config.Config, logger *zerolog.Logger) (*pgxpool.Pool, error) {
	log := logger.With().Str("layer", "postgres_pool").Logger()

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.MasterDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid dsn: %w", err)
	}
	if cfg.Postgres.Pool.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.Pool.MaxOpenConns)
	}
	if cfg.Postgres.Pool.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.Postgres.Pool.MaxIdleConns)
	}
	if cfg.Postgres.Pool.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.Postgres.Pool.ConnMaxLifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("postgres pool ready")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("closing postgres pool")
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

// migrate applies every embedded migration in lexical order. Migrations are idempotent.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("postgres: list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		stmt, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(stmt)); err != nil {
			return fmt.Errorf("postgres: apply migration %s: %w", name, err)
		}
	}
	return nil
}
