package sched

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"discord-storefront/internal/infra/metrics"
)

// PoolStatsWorker publishes database pool gauges.
type PoolStatsWorker struct {
	interval time.Duration
	pool     *pgxpool.Pool
	log      *zerolog.Logger
}

func NewPoolStatsWorker(interval time.Duration, pool *pgxpool.Pool, logger *zerolog.Logger) *PoolStatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	l := logger.With().Str("component", "PoolStatsWorker").Logger()
	return &PoolStatsWorker{interval: interval, pool: pool, log: &l}
}

func (w *PoolStatsWorker) Run(ctx context.Context) error {
	// once on startup, then on every tick
	w.sample()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *PoolStatsWorker) sample() {
	s := w.pool.Stat()
	metrics.SetDBPool(metrics.PoolSample{
		Total:         s.TotalConns(),
		Idle:          s.IdleConns(),
		Acquired:      s.AcquiredConns(),
		Max:           s.MaxConns(),
		Acquires:      s.AcquireCount(),
		EmptyAcquires: s.EmptyAcquireCount(),
	})
	w.log.Trace().Int32("total", s.TotalConns()).Int32("in_use", s.AcquiredConns()).Msg("db pool sampled")
}
