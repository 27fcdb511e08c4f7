package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"discord-storefront/internal/config"
	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/domain/ports/repository"
	"discord-storefront/internal/infra/adapters/discord"
	"discord-storefront/internal/infra/adapters/email"
	"discord-storefront/internal/infra/adapters/kafka"
	"discord-storefront/internal/infra/adapters/payment"
	"discord-storefront/internal/infra/adapters/telegram"
	"discord-storefront/internal/infra/auth"
	pg "discord-storefront/internal/infra/db/postgres"
	"discord-storefront/internal/infra/i18n"
	"discord-storefront/internal/infra/logging"
	red "discord-storefront/internal/infra/redis"
	"discord-storefront/internal/infra/security"
	"discord-storefront/internal/infra/worker"
	"discord-storefront/internal/usecase"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg  *config.Config
	log  *zerolog.Logger
	pool *pgxpool.Pool
	rdb  *red.Client

	events *kafka.Publisher // nil when no brokers are configured
	jobs   *worker.Pool
	queue  *worker.DeliveryQueue
	admin  *auth.AdminAuth

	orderRepo repository.OrderRepository

	orders   usecase.OrderUseCase
	delivery usecase.DeliveryUseCase
	catalog  usecase.CatalogUseCase
	servers  usecase.ServerUseCase
	reviews  usecase.ReviewUseCase
	roles    usecase.RoleUseCase
}

func loadConfig(flags *rootFlags) (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(flags.configPath, flags.dev)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logging.Global = *logger
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	return cfg, logger, nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.pool = pool

	rdb, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.rdb = rdb

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	products := pg.NewProductRepoCacheDecorator(pg.NewProductRepo(pool), rdb, cfg.Redis.TTL, logger)
	serials := pg.NewSerialRepo(pool)
	orders := pg.NewOrderRepo(pool)
	a.orderRepo = orders
	ledger := pg.NewLedgerRepo(pool)
	var secrets pg.SecretCipher
	if cfg.Security.EncryptionKey != "" {
		box, err := security.NewSecretBox(cfg.Security.EncryptionKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("security: %w", err)
		}
		secrets = box
	} else {
		logger.Warn().Msg("security.encryption_key not set; payment credentials are stored in plaintext")
	}
	servers := pg.NewServerRepo(pool, secrets)
	reviews := pg.NewReviewRepo(pool)
	grants := pg.NewRoleGrantRepo(pool)

	// ---- Outbound adapters ----
	factory := payment.StripeFactory(cfg.Stripe.Timeout)
	if cfg.Stripe.DevSecret != "" {
		logger.Warn().Msg("using the development payment gateway; payments are simulated")
		factory = payment.DevFactory(payment.NewDevGateway(cfg.Stripe.DevSecret))
	}
	gateways := payment.NewRegistry(servers, factory, cfg.Stripe.RegistrySize, cfg.Stripe.RegistryTTL, logger)

	dc, err := discord.NewClient(cfg.Discord.Token, cfg.Discord.Timeout, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("discord: %w", err)
	}

	var mailer adapter.EmailNotifier
	if cfg.Email.Enabled() {
		n, err := email.NewNotifier(cfg.Email, cfg.Delivery.Timeout, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("email: %w", err)
		}
		mailer = n
	} else {
		logger.Info().Msg("email fallback disabled")
	}

	var alerts adapter.OperatorAlerter = telegram.NewNoopAlerter(logger)
	if cfg.Telegram.Token != "" {
		al, err := telegram.NewAlerter(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Delivery.Timeout, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("telegram: %w", err)
		}
		alerts = al
	}

	texts, err := i18n.Load(cfg.Delivery.Locale)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("i18n: %w", err)
	}

	deliveryOpts := []usecase.DeliveryOption{
		usecase.WithNoticeTexts(texts),
		usecase.WithPoolLocker(red.NewLocker(rdb), cfg.Delivery.LockTTL),
		usecase.WithDeliveryTimeout(cfg.Delivery.Timeout),
		usecase.WithDeliveryAlerts(alerts),
	}
	orderOpts := []usecase.OrderOption{
		usecase.WithPurchaseLimit(red.NewRateLimiter(rdb), cfg.Purchase.RateLimit, cfg.Purchase.RateWindow),
		usecase.WithGatewayTimeout(cfg.Stripe.Timeout),
		usecase.WithOrderAlerts(alerts),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		a.events = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, 1024, logger)
		a.events.Start()
		deliveryOpts = append(deliveryOpts, usecase.WithDeliveryEvents(a.events))
		orderOpts = append(orderOpts, usecase.WithOrderEvents(a.events))
	}

	reviewTokens := auth.NewReviewTokens(cfg.Review.Secret, cfg.Review.TTL)
	if cfg.Review.BaseURL != "" {
		deliveryOpts = append(deliveryOpts, usecase.WithReviewLinks(reviewTokens, cfg.Review.BaseURL))
	}

	// ---- Use cases ----
	a.delivery = usecase.NewDeliveryUseCase(orders, products, serials, grants, dc, dc, mailer, logger, deliveryOpts...)
	a.jobs = worker.NewPool(cfg.Delivery.Workers, cfg.Delivery.QueueSize, logger)
	a.queue = worker.NewDeliveryQueue(a.jobs, a.delivery, cfg.Delivery.Timeout*6, logger)
	a.orders = usecase.NewOrderUseCase(products, orders, ledger, servers, gateways, tm, a.queue, logger, orderOpts...)
	a.catalog = usecase.NewCatalogUseCase(products, serials, servers, tm, cfg.Stripe.DefaultCurrency, logger)
	a.servers = usecase.NewServerUseCase(servers, ledger, gateways, cfg.Commission.DefaultRate, logger)
	a.reviews = usecase.NewReviewUseCase(reviews, orders, reviewTokens, logger)
	a.roles = usecase.NewRoleUseCase(grants, dc, cfg.Discord.Timeout, logger)
	a.admin = auth.NewAdminAuth(cfg.Admin.JWTSecret, 0)
	return a, nil
}

func (a *app) Close() {
	if a.events != nil {
		a.events.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
