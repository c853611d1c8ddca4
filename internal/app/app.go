package app

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/fogroute/internal/changes"
	"github.com/MrSnakeDoc/fogroute/internal/comsat"
	"github.com/MrSnakeDoc/fogroute/internal/config"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/index"
	"github.com/MrSnakeDoc/fogroute/internal/logger"
	"github.com/MrSnakeDoc/fogroute/internal/metrics"
	"github.com/MrSnakeDoc/fogroute/internal/orchestrator"
	"github.com/MrSnakeDoc/fogroute/internal/redis"
	"github.com/MrSnakeDoc/fogroute/internal/relay"
	"github.com/MrSnakeDoc/fogroute/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/fogroute/internal/store/redis"
	"github.com/MrSnakeDoc/fogroute/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	reloader    *scheduler.CatalogReloader
	reconciler  *scheduler.Reconciler
}

// New wires the service. Redis must be reachable: routing state lives
// nowhere else.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	redisClient, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := redisstore.NewStore(redisClient)
	m := metrics.New()
	clk := clock.New()
	dir := index.NewDirectory(store)

	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewCatalogReloader(
		cfg.CatalogFile,
		store,
		dir,
		m,
		loggerClient,
		cfg.ReloadInterval,
		reloadTrigger,
	)

	satellites := comsat.NewClient(cfg.SatelliteTimeout, loggerClient.With(logger.String("component", "comsat")),
		comsat.WithObserver(m.ObserveSatelliteCall))
	allocator := relay.NewAllocator(dir, satellites, store, clk, m, loggerClient.With(logger.String("component", "relay")))
	notifier := changes.NewNotifier(store, clk, loggerClient)
	orch := orchestrator.New(dir, store, allocator, notifier, m, loggerClient, cfg.LockTTL)

	reconciler := scheduler.NewReconciler(
		store,
		allocator,
		clk,
		loggerClient.With(logger.String("component", "reconciler")),
		cfg.ReconcileInterval,
		cfg.PendingGrace,
	)

	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		CatalogFile:   cfg.CatalogFile,
		Store:         store,
		Directory:     dir,
		Routes:        orch,
		Changes:       notifier,
		Metrics:       m,
		ReloadTrigger: reloadTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		reloader:    reloader,
		reconciler:  reconciler,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting fogroute",
		logger.String("version", version.String()),
		logger.String("listen", a.cfg.ListenPort))

	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start catalog reloader: %w", err)
	}
	a.logger.Info("catalog reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if err := a.reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	a.logger.Info("reconciler started",
		logger.Duration("interval", a.cfg.ReconcileInterval),
		logger.Duration("grace", a.cfg.PendingGrace))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down gracefully")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.reconciler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Warn("failed to close redis", logger.Error(err))
	} else {
		a.logger.Info("redis closed cleanly")
	}

	a.logger.Info("fogroute stopped cleanly")
	return nil
}
