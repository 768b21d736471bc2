package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/transferengine/internal/adapter/http"
	"github.com/iho/transferengine/internal/adapter/http/handler"
	"github.com/iho/transferengine/internal/adapter/http/middleware"
	"github.com/iho/transferengine/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/transferengine/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/transferengine/internal/adapter/repository/redis"
	"github.com/iho/transferengine/internal/infrastructure/auth"
	"github.com/iho/transferengine/internal/infrastructure/config"
	"github.com/iho/transferengine/internal/infrastructure/eventpublisher"
	"github.com/iho/transferengine/internal/infrastructure/logger"
	"github.com/iho/transferengine/internal/infrastructure/metrics"
	"github.com/iho/transferengine/internal/infrastructure/postgres"
	"github.com/iho/transferengine/internal/infrastructure/redis"
	"github.com/iho/transferengine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// "server migrate-down" rolls back one migration and exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := postgres.RunMigrationsDown(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			log.Fatal().Err(err).Msg("migration rollback failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

// storage is the set of repositories for the configured driver.
type storage struct {
	accounts usecase.AccountRepository
	ledger   usecase.LedgerStore
	journal  usecase.JournalRepository
	outbox   usecase.OutboxRepository
	idGen    usecase.IDGenerator
	checks   map[string]handler.Pinger
	closers  []func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*storage, error) {
	idGen := postgresRepo.NewULIDGenerator()
	clock := usecase.SystemClock{}

	if cfg.StorageDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage; state is lost on restart")
		outbox := memory.NewOutbox()
		ledger := memory.NewLedger(idGen, clock)
		return &storage{
			accounts: ledger,
			ledger:   ledger,
			journal:  memory.NewJournal(outbox),
			outbox:   outbox,
			idGen:    idGen,
			checks:   map[string]handler.Pinger{},
		}, nil
	}

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
		return nil, err
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Msg("connected to postgres")

	retrier := postgresRepo.NewRetrier(postgresRepo.RetrierConfig{
		MaxRetries:      cfg.PostingMaxRetries,
		InitialInterval: cfg.PostingRetryInitial,
		MaxInterval:     cfg.PostingRetryMax,
		MaxElapsedTime:  cfg.PostingRetryMaxElapsed,
	}, log, m.PostingRetried)

	return &storage{
		accounts: postgresRepo.NewAccountRepository(pool),
		ledger:   postgresRepo.NewLedgerStore(pool, retrier, idGen, clock),
		journal:  postgresRepo.NewJournalRepository(pool),
		outbox:   postgresRepo.NewOutboxRepository(pool),
		idGen:    idGen,
		checks:   map[string]handler.Pinger{"postgres": pool.Ping},
		closers:  []func(){pool.Close},
	}, nil
}

type app struct {
	cfg         *config.Config
	log         zerolog.Logger
	handler     http.Handler
	recovery    *usecase.RecoveryUseCase
	publisher   *eventpublisher.EventPublisher
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := openStorage(ctx, cfg, log, m)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, closers: store.closers}

	var (
		cache       usecase.OutcomeCache
		locker      usecase.Locker
		idempotency usecase.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		store.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		cache = redisRepo.NewOutcomeCache(client)
		locker = redisRepo.NewLocker(client, log)
		idempotency = redisRepo.NewIdempotencyStore(client)
		log.Info().Msg("connected to redis")
	}

	var publisher eventpublisher.Publisher = eventpublisher.NewLogPublisher(log)
	if cfg.RabbitMQURL != "" {
		amqpPublisher, conn, err := eventpublisher.DialAMQP(cfg.RabbitMQURL, eventpublisher.AMQPConfig{Exchange: cfg.RabbitMQExchange}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() {
			_ = amqpPublisher.Close()
			_ = conn.Close()
		})
		publisher = amqpPublisher
		log.Info().Str("exchange", cfg.RabbitMQExchange).Msg("connected to rabbitmq")
	}

	clock := usecase.SystemClock{}

	executor := usecase.NewTransferExecutor(store.ledger, store.journal, store.idGen, clock, m, log, usecase.ExecutorConfig{
		DebitTimeout:        cfg.DebitTimeout,
		CreditTimeout:       cfg.CreditTimeout,
		CompensationTimeout: cfg.CompensationTimeout,
	})
	accountUC := usecase.NewAccountUseCase(store.accounts, store.ledger, store.outbox, store.idGen, clock, log)
	transferUC := usecase.NewTransferUseCase(store.accounts, store.journal, store.ledger, executor, cache, store.idGen, clock, m, log, usecase.TransferConfig{
		SubmitTimeout:   cfg.SubmitTimeout,
		OutcomeCacheTTL: cfg.OutcomeCacheTTL,
	})
	a.recovery = usecase.NewRecoveryUseCase(store.journal, executor, locker, clock, m, log, usecase.RecoveryConfig{
		Grace:     cfg.RecoveryGrace,
		Interval:  cfg.RecoveryInterval,
		BatchSize: cfg.RecoveryBatchSize,
		LockTTL:   cfg.RecoveryLockTTL,
	})
	reconUC := usecase.NewReconciliationUseCase(store.accounts, store.ledger, store.journal, clock)

	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publisher,
		Recorder:   m,
		Clock:      clock,
		Logger:     log,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accountUC),
		TransferHandler:  handler.NewTransferHandler(transferUC),
		AdminHandler:     handler.NewAdminHandler(a.recovery, reconUC),
		HealthHandler:    handler.NewHealthHandler(store.checks),
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		HTTPMetrics:      middleware.NewHTTPMetrics(reg),
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:           log,
	}
	if cfg.AuthEnabled {
		routerCfg.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		routerCfg.RateLimiter = a.rateLimiter
	}

	a.handler = httpAdapter.NewRouter(routerCfg)
	return a, nil
}

// Run serves HTTP and runs the background workers until ctx is done.
func (a *app) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         ":" + a.cfg.HTTPPort,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.HTTPReadTimeout,
		WriteTimeout: a.cfg.HTTPWriteTimeout,
		IdleTimeout:  a.cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("port", a.cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.cfg.RecoveryEnabled {
		g.Go(func() error { return a.recovery.Start(gctx) })
	}

	g.Go(func() error {
		if err := a.publisher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if a.rateLimiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					a.rateLimiter.CleanupLimiters(time.Hour)
				}
			}
		})
	}

	return g.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
