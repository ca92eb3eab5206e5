package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iller75/BybitMover/internal/adapter/gateway/bybit"
	"github.com/iller75/BybitMover/internal/adapter/gateway/simulated"
	httpAdapter "github.com/iller75/BybitMover/internal/adapter/http"
	"github.com/iller75/BybitMover/internal/adapter/http/handler"
	"github.com/iller75/BybitMover/internal/adapter/http/middleware"
	"github.com/iller75/BybitMover/internal/adapter/repository/file"
	"github.com/iller75/BybitMover/internal/adapter/repository/idgen"
	redisRepo "github.com/iller75/BybitMover/internal/adapter/repository/redis"
	"github.com/iller75/BybitMover/internal/infrastructure/config"
	"github.com/iller75/BybitMover/internal/infrastructure/logger"
	"github.com/iller75/BybitMover/internal/infrastructure/metrics"
	"github.com/iller75/BybitMover/internal/infrastructure/redis"
	"github.com/iller75/BybitMover/internal/infrastructure/scheduler"
	"github.com/iller75/BybitMover/internal/usecase"
)

const defaultWebPort = 5000

// app holds the components shared by run and serve.
type app struct {
	rt       *config.Runtime
	settings *config.Settings
	log      zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []io.Closer
}

func newApp(configPath string) (*app, error) {
	rt, err := config.LoadRuntime()
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	log, logCloser := logger.New(logger.Config{
		Level:      rt.LogLevel,
		Format:     rt.LogFormat,
		File:       rt.LogFile,
		MaxSizeMB:  rt.LogMaxSizeMB,
		MaxBackups: rt.LogMaxBackups,
	})

	settings, err := config.LoadSettings(configPath)
	if err != nil {
		log.Error().Err(err).Str("config", configPath).Msg("failed to load configuration")
		_ = logCloser.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &app{
		rt:       rt,
		settings: settings,
		log:      log,
		registry: registry,
		metrics:  metrics.New(registry),
		closers:  []io.Closer{logCloser},
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

func (a *app) gateway() usecase.Gateway {
	if a.settings.TestMode {
		return simulated.NewGateway(nil, a.log)
	}

	baseURL := a.rt.BybitBaseURL
	if baseURL == "" && a.rt.BybitTestnet {
		baseURL = bybit.TestnetRestURL
	}

	return bybit.NewGateway(a.settings.AllAccounts(), bybit.Config{
		BaseURL:   baseURL,
		Timeout:   a.rt.BybitTimeout,
		RateLimit: a.rt.BybitRateLimit,
		Observer:  a.metrics,
		Logger:    a.log,
	})
}

func (a *app) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.rt.RedisURL == "" {
		return nil, nil
	}

	client, err := redis.NewClient(ctx, a.rt.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client)
	a.log.Info().Msg("connected to redis")

	return client, nil
}

// router builds the report API over ledger. The rate limiter is swept of
// idle clients until ctx is done.
func (a *app) router(ctx context.Context, ledger usecase.LedgerReader, redisClient *goredis.Client) http.Handler {
	limiter := middleware.NewRateLimiter(10, 20)
	go limiter.Run(ctx, time.Hour)

	return httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ReportHandler:     handler.NewReportHandler(usecase.NewReportUseCase(ledger)),
		HealthHandler:     handler.NewHealthHandler(ledger, redisClient),
		MetricsHandler:    promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		MetricsMiddleware: middleware.NewMetricsMiddleware(a.metrics.HTTPRequests, a.metrics.HTTPDuration),
		RateLimiter:       limiter,
		Logger:            a.log,
	})
}

// serveHTTP runs server until ctx is done, then shuts it down gracefully.
func (a *app) serveHTTP(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", server.Addr).Msg("starting report server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("report server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.rt.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown report server: %w", err)
	}
	a.log.Info().Msg("report server stopped")

	return nil
}

func (a *app) newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  a.rt.HTTPReadTimeout,
		WriteTimeout: a.rt.HTTPWriteTimeout,
	}
}

func (a *app) logBanner() {
	mode := "LIVE"
	if a.settings.TestMode {
		mode = "TEST"
	}

	event := a.log.Info().
		Str("mode", mode).
		Str("check_interval", a.settings.CheckInterval).
		Str("profit_percentage", a.settings.ProfitPercentage.String()).
		Str("min_profit_threshold", a.settings.MinProfitThreshold.String()).
		Str("min_remaining_balance", a.settings.MinRemainingBalance.String()).
		Bool("margin_check", a.settings.MarginCheckActive()).
		Str("main_account", a.settings.Accounts.MainAccount.UID).
		Int("sub_accounts", len(a.settings.Accounts.SubAccounts)).
		Str("ledger", a.rt.LedgerPath)

	if a.settings.MarginCheckActive() {
		event = event.Str("max_margin_used_percent", a.settings.MarginCheck.MaxMarginUsedPercent.String())
	}

	event.Msg("bybit mover starting")
}

// runSweeper wires the sweep engine and runs the scheduler until ctx is done.
func runSweeper(ctx context.Context, configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logBanner()

	ledger, err := file.NewLedgerRepository(a.rt.LedgerPath)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to open ledger")
		return err
	}

	redisClient, err := a.redisClient(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to connect to redis")
		return err
	}

	var lock usecase.SweepLock
	if redisClient != nil {
		lock = redisRepo.NewSweepLock(redisClient)
	}

	gateway := a.gateway()

	tracker := usecase.NewBalanceTracker(gateway, a.log)
	tracker.Initialize(ctx, a.settings.SubAccounts())

	engine := usecase.NewProfitEngine(usecase.ProfitEngineConfig{
		MainAccount:        a.settings.MainAccount(),
		SubAccounts:        a.settings.SubAccounts(),
		ProfitPercentage:   a.settings.ProfitPercentage,
		MinProfitThreshold: a.settings.MinProfitThreshold,
		Tracker:            tracker,
		Guards: usecase.NewGuardEvaluator(gateway, usecase.GuardConfig{
			MarginCheckEnabled:   a.settings.MarginCheckActive(),
			MaxMarginUsedPercent: a.settings.MarginCheck.MaxMarginUsedPercent,
			MinRemainingBalance:  a.settings.MinRemainingBalance,
		}, a.log),
		Executor: usecase.NewTransferExecutor(gateway, idgen.NewUUIDGenerator(), a.log),
		Ledger:   ledger,
		IDGen:    idgen.NewULIDGenerator(),
		Lock:     lock,
		LockTTL:  a.rt.SweepLockTTL,
		Metrics:  a.metrics,
		Logger:   a.log,
	})

	sched := scheduler.New(scheduler.Config{
		Runner:   engine,
		Interval: a.settings.Interval(),
		Logger:   a.log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})
	if a.rt.HTTPAddr != "" {
		server := a.newServer(a.rt.HTTPAddr, a.router(gctx, ledger, redisClient))
		g.Go(func() error {
			return a.serveHTTP(gctx, server)
		})
	}

	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Msg("bybit mover stopped with error")
		return err
	}

	a.log.Info().Msg("bybit mover stopped")
	return nil
}

// serveReports runs the report API alone over a ledger owned by another process.
func serveReports(ctx context.Context, configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	repo, err := file.NewLedgerRepository(a.rt.LedgerPath)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to open ledger")
		return err
	}
	reader := file.NewReloadingReader(repo)

	addr := a.rt.HTTPAddr
	if addr == "" {
		port := a.settings.WebPort
		if port == 0 {
			port = defaultWebPort
		}
		addr = fmt.Sprintf(":%d", port)
	}

	return a.serveHTTP(ctx, a.newServer(addr, a.router(ctx, reader, nil)))
}
