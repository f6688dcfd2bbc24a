package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"channelcast/internal/infra/metrics"
)

// Schema is the channel directory layout. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS channels (
  owner_id   BIGINT      NOT NULL,
  channel_id BIGINT      NOT NULL,
  title      TEXT        NOT NULL,
  username   TEXT        NOT NULL DEFAULT '',
  added_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (owner_id, channel_id)
);
CREATE INDEX IF NOT EXISTS channels_channel_id_idx ON channels (channel_id);
`

// NewPgxPool connects and pings with a bounded timeout.
func NewPgxPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(cctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool connect: %w", err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ReportPoolStats publishes pool gauges every interval until ctx ends.
func ReportPoolStats(ctx context.Context, pool *pgxpool.Pool, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Debug().Dur("interval", interval).Msg("pool stats reporter started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := pool.Stat()
			metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
		}
	}
}
