// Package main - точка входа консоли администратора автошколы.
//
// Процесс загружает начальное состояние (встроенный набор, JSON-файл или
// Postgres), поднимает хранилище состояния с шиной событий, фоновые задачи
// и REST API поверх него.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/drivehub/admin-console/config"
	"github.com/drivehub/admin-console/internal/application/command"
	"github.com/drivehub/admin-console/internal/application/eventhandler"
	"github.com/drivehub/admin-console/internal/application/query"
	"github.com/drivehub/admin-console/internal/application/store"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/infrastructure/messaging"
	"github.com/drivehub/admin-console/internal/infrastructure/persistence/postgres"
	"github.com/drivehub/admin-console/internal/infrastructure/persistence/redis"
	"github.com/drivehub/admin-console/internal/infrastructure/scheduler"
	"github.com/drivehub/admin-console/internal/infrastructure/scheduler/jobs"
	"github.com/drivehub/admin-console/internal/infrastructure/seed"
	httpapi "github.com/drivehub/admin-console/internal/interface/http"
	"github.com/drivehub/admin-console/internal/interface/http/handlers"
	"github.com/drivehub/admin-console/pkg/circuitbreaker"
	"github.com/drivehub/admin-console/pkg/logger"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// closer освобождает ресурс при остановке.
type closer struct {
	name string
	fn   func() error
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.App.Debug,
	})
	slogger := setupSlog(cfg)

	if err := timeutil.LoadZone(cfg.App.Timezone); err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	log.Info("starting admin console",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("seed", string(cfg.Seed.Source)),
		logger.Any("features", cfg.Features.EnabledNames()),
	)

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(); err != nil {
				log.Warn("close failed", logger.Component(closers[i].name), logger.Err(err))
			}
		}
	}()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES (источник начального состояния)
	// ─────────────────────────────────────────────────────────────────────────
	var pg *postgres.Connection
	if cfg.Seed.Source == config.SeedPostgres || cfg.Seed.ImportToPostgres {
		pg, err = connectPostgres(ctx, cfg.Database)
		if err != nil {
			return err
		}
		closers = append(closers, closer{name: "postgres", fn: func() error { pg.Close(); return nil }})
		health.AddCheck("postgres", handlers.NewPingCheck(pg))
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. НАЧАЛЬНОЕ СОСТОЯНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	src, err := seedSource(cfg.Seed, pg)
	if err != nil {
		return err
	}
	initial, err := seed.Load(ctx, src, seed.Options{RecomputeStats: cfg.Seed.RecomputeStats}, slogger)
	if err != nil {
		return fmt.Errorf("failed to load seed %s: %w", src.Name(), err)
	}
	if cfg.Seed.ImportToPostgres && cfg.Seed.Source != config.SeedPostgres {
		if err := postgres.NewSeedRepository(pg).Import(ctx, initial, time.Now()); err != nil {
			return fmt.Errorf("failed to import seed: %w", err)
		}
		log.Info("seed imported to postgres", logger.String("source", src.Name()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var rdb *goredis.Client
	if !cfg.Redis.Disabled {
		rdb, err = redis.NewClient(ctx, redisConfig(cfg.Redis))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, closer{name: "redis", fn: rdb.Close})
		health.AddOptionalCheck("redis", handlers.NewPingCheck(redis.NewCache(rdb, cfg.Redis.KeyPrefix)))
		log.Info("redis connection established")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := newEventBus(cfg, rdb, slogger)
	if err != nil {
		return err
	}
	closers = append(closers, closer{name: "eventbus", fn: bus.Close})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ХРАНИЛИЩЕ И КОМАНДЫ
	// ─────────────────────────────────────────────────────────────────────────
	strict := cfg.Features.IsEnabled(config.FeatureStrictDispatch)
	st := store.New(initial,
		store.WithLogger(log),
		store.WithPublisher(bus),
		store.WithValidation(cfg.Console.ValidateActions),
		store.WithStrictTargets(strict),
	)
	health.AddCheck("stats", handlers.NewStatsConsistencyCheck(st))

	var coordinator *command.Coordinator
	if cfg.Features.IsEnabled(config.FeatureTwoPhaseCommands) {
		coordinator = command.NewCoordinator(st,
			command.WithTTL(cfg.Console.IntentTTL),
			command.WithLogger(log),
			command.WithPublisher(bus),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		EventBus:            bus,
		RetryConfig:         messaging.DefaultRetryConfig(),
		DeadLetterQueueSize: 100,
		Logger:              slogger,
	})
	dispatcher.Use(messaging.RecoveryMiddleware(slogger))
	dispatcher.Use(messaging.LoggingMiddleware(slogger))
	if err := registerHandlers(cfg, dispatcher, st, bus, rdb, slogger); err != nil {
		return err
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}
	closers = append(closers, closer{name: "dispatcher", fn: dispatcher.Stop})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = newScheduler(cfg.Scheduler, st, bus, coordinator, slogger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		closers = append(closers, closer{name: "scheduler", fn: sched.Stop})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpapi.Dependencies{
		Store:               st,
		Selectors:           query.NewSelectors(st),
		RequireConfirmation: coordinator != nil,
		EnforcePolicy:       strict,
		Logger:              log,
		HealthChecker:       health,
	}
	if coordinator != nil {
		deps.Intents = coordinator
	}
	if sched != nil {
		deps.Jobs = sched
	}
	if dlq := dispatcher.DeadLetterQueue(); dlq != nil {
		deps.DeadLetters = dlq
	}
	hc := httpConfig(cfg)
	server, err := httpapi.NewServer(hc, deps)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	errCh := server.StartAsync()

	log.Info("admin console is running",
		logger.String("addr", hc.Address()),
		logger.Revision(st.Revision()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed", logger.Revision(st.Revision()))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func connectPostgres(ctx context.Context, db config.DatabaseConfig) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	if db.URL != "" {
		pgCfg.URL = db.URL
	}
	pgCfg.MaxConns = int32(db.MaxOpenConns)
	pgCfg.MinConns = int32(db.MaxIdleConns)
	pgCfg.MaxConnLifetime = db.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = db.ConnMaxIdleTime
	pgCfg.ConnectTimeout = db.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return conn, nil
}

func seedSource(cfg config.SeedConfig, pg *postgres.Connection) (seed.Source, error) {
	switch cfg.Source {
	case config.SeedBuiltin:
		return seed.BuiltinSource{Now: time.Now()}, nil
	case config.SeedFile:
		return seed.FileSource{Path: cfg.File}, nil
	case config.SeedPostgres:
		repo := postgres.NewSeedRepository(pg)
		return seed.NewReaderSource("postgres", seed.Readers{
			Students:      repo,
			Instructors:   repo,
			Transactions:  repo,
			Conversations: repo,
			Packages:      repo,
			Settings:      repo,
			Revenue:       repo,
		}), nil
	default:
		return nil, fmt.Errorf("unknown seed source %q", cfg.Source)
	}
}

func redisConfig(rc config.RedisConfig) redis.Config {
	c := redis.DefaultConfig()
	c.Host = rc.Host
	c.Port = rc.Port
	c.Password = rc.Password
	c.DB = rc.DB
	c.KeyPrefix = rc.KeyPrefix
	c.PoolSize = rc.PoolSize
	c.MinIdleConns = rc.MinIdleConns
	c.DialTimeout = rc.DialTimeout
	c.ReadTimeout = rc.ReadTimeout
	c.WriteTimeout = rc.WriteTimeout
	return c
}

// eventBus объединяет шину событий с её закрытием.
type eventBus interface {
	shared.EventBus
	Close() error
}

func newEventBus(cfg *config.Config, rdb *goredis.Client, log *slog.Logger) (eventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = log
	local.AsyncMode = true

	if rdb == nil || !cfg.Features.IsEnabled(config.FeatureRedisEventFanout) {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         redis.NewPubSubClient(rdb),
		ChannelName:    cfg.Redis.Channel,
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis event bus: %w", err)
	}
	return bus, nil
}

func registerHandlers(
	cfg *config.Config,
	d *messaging.Dispatcher,
	st *store.Store,
	bus shared.EventPublisher,
	rdb *goredis.Client,
	log *slog.Logger,
) error {
	types := shared.ActionEventTypes()

	if cfg.Features.IsEnabled(config.FeatureStatsAudit) {
		audit := eventhandler.NewStatsAuditHandler(st, bus, log)
		if err := d.Register("stats_audit", audit.Handle, types...); err != nil {
			return fmt.Errorf("failed to register stats audit: %w", err)
		}
	}

	if rdb != nil && cfg.Features.IsEnabled(config.FeatureRedisStatsCache) {
		breaker := circuitbreaker.RedisBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
		cache := redis.NewStatsCache(redis.NewCache(rdb, cfg.Redis.KeyPrefix), redis.TTLStatsSnapshot)
		handler := eventhandler.NewStatsCacheHandler(st, cache, breaker, log)
		if err := d.Register("stats_cache", handler.Handle, types...); err != nil {
			return fmt.Errorf("failed to register stats cache: %w", err)
		}
	}
	return nil
}

func newScheduler(
	cfg config.SchedulerConfig,
	st *store.Store,
	bus shared.EventPublisher,
	coordinator *command.Coordinator,
	log *slog.Logger,
) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         log,
		Clock:          timeutil.SystemClock{},
		Tick:           cfg.Tick,
		MaxHistorySize: 200,
		EnableMetrics:  true,
	})

	reconcile, err := scheduler.NewIntervalSchedule(cfg.ReconcileStatsInterval)
	if err != nil {
		return nil, fmt.Errorf("reconcile schedule: %w", err)
	}
	if err := sched.Register(jobs.NewReconcileStatsJob(st, bus, log), reconcile); err != nil {
		return nil, err
	}

	if coordinator != nil {
		expire, err := scheduler.NewIntervalSchedule(cfg.ExpireIntentsInterval)
		if err != nil {
			return nil, fmt.Errorf("expire schedule: %w", err)
		}
		if err := sched.Register(jobs.NewExpireIntentsJob(coordinator, timeutil.SystemClock{}, log), expire); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func httpConfig(cfg *config.Config) httpapi.Config {
	c := httpapi.DefaultConfig()
	c.Host = cfg.HTTP.Host
	c.Port = cfg.HTTP.Port
	c.ReadTimeout = cfg.HTTP.ReadTimeout
	c.WriteTimeout = cfg.HTTP.WriteTimeout
	c.IdleTimeout = cfg.HTTP.IdleTimeout
	c.HandlerTimeout = cfg.HTTP.HandlerTimeout
	c.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	c.AllowedOrigins = cfg.HTTP.AllowedOrigins
	c.EnableCORS = len(cfg.HTTP.AllowedOrigins) > 0
	c.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	c.Version = cfg.App.Version
	return c
}

// setupSlog настраивает slog для инфраструктурных компонентов.
func setupSlog(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}

	var handler slog.Handler
	if logger.ParseFormat(cfg.Observability.LogFormat) == logger.FormatText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

func slogLevel(s string) slog.Level {
	switch logger.ParseLevel(s) {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError, logger.LevelFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
