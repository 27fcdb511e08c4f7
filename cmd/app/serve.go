package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"discord-storefront/internal/infra/api"
	"discord-storefront/internal/infra/api/apiv1"
	"discord-storefront/internal/infra/metrics"
	"discord-storefront/internal/infra/sched"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook endpoint and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(parent context.Context, flags *rootFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(flags)
	if err != nil {
		return err
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	a.jobs.Start(ctx)

	jobs := sched.NewGroup(logger)
	jobs.Add("delivery-reconciler", sched.NewDeliveryReconciler(a.orderRepo, a.queue, cfg.Delivery.ReconcileInterval, cfg.Delivery.ReconcileAge, logger))
	jobs.Add("role-expiry", sched.NewRoleExpiryWorker(cfg.Delivery.RoleCheckInterval, a.roles, logger))
	jobs.Add("db-pool-stats", sched.NewPoolStatsWorker(15*time.Second, a.pool, logger))
	jobs.Start(ctx)

	v1 := apiv1.NewServer(a.orders, a.delivery, a.catalog, a.servers, a.reviews, a.admin, logger)
	health := func(ctx context.Context) error {
		if err := a.pool.Ping(ctx); err != nil {
			return err
		}
		return a.rdb.Ping(ctx)
	}
	srv := api.NewServer(cfg.HTTP, api.NewRouter(cfg.HTTP, v1, health, logger), logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err = <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, context.Canceled) {
		logger.Warn().Err(serr).Msg("http shutdown")
	}
	jobs.Stop()
	// running deliveries finish; queued ones are retried by the reconciler after restart
	a.jobs.Stop()
	logger.Info().Msg("stopped")
	return err
}
