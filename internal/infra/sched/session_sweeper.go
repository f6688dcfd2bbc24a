package sched

import (
	"context"
	"fmt"

	"channelcast/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweepable is a session store that can drop idle entries.
type Sweepable interface {
	Sweep(ctx context.Context) int
	Len() int
}

// SessionSweeper evicts idle compose sessions on a cron schedule.
type SessionSweeper struct {
	spec  string
	store Sweepable
	log   *zerolog.Logger
}

func NewSessionSweeper(spec string, store Sweepable, logger *zerolog.Logger) *SessionSweeper {
	swLog := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{spec: spec, store: store, log: &swLog}
}

// Run blocks until ctx is done. An invalid spec is reported immediately.
func (w *SessionSweeper) Run(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(w.spec, func() { w.SweepOnce(ctx) }); err != nil {
		return fmt.Errorf("session sweeper: bad schedule %q: %w", w.spec, err)
	}

	w.log.Info().Str("spec", w.spec).Msg("Starting session sweeper")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Msg("Stopping session sweeper")
	return ctx.Err()
}

// SweepOnce runs one eviction pass and updates the session gauges.
func (w *SessionSweeper) SweepOnce(ctx context.Context) int {
	n := w.store.Sweep(ctx)
	metrics.AddSessionsEvicted(n)
	metrics.SetSessionsActive(w.store.Len())
	if n > 0 {
		w.log.Info().Int("count", n).Msg("idle sessions evicted")
	}
	return n
}
