package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RoleRevoker is the role use case as seen by the worker.
type RoleRevoker interface {
	RevokeExpired(ctx context.Context, now time.Time, batch int) (int, error)
}

// RoleExpiryWorker periodically removes roles whose grant ran out.
type RoleExpiryWorker struct {
	interval time.Duration
	roles    RoleRevoker
	batch    int
	log      *zerolog.Logger
}

func NewRoleExpiryWorker(interval time.Duration, roles RoleRevoker, logger *zerolog.Logger) *RoleExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "RoleExpiryWorker").Logger()
	return &RoleExpiryWorker{interval: interval, roles: roles, batch: 100, log: &l}
}

func (w *RoleExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting role expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping role expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.roles.RevokeExpired(ctx, time.Now(), w.batch)
			if err != nil {
				w.log.Error().Err(err).Msg("role expiry run failed")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired roles revoked")
			}
		}
	}
}
