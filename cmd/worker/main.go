// Package main - точка входа фонового процесса PrepHub Analytics.
//
// Worker собирает storage, read cache и analytics.Service и крутит
// периодические задачи:
//   - прогрев страниц лидерборда до истечения TTL
//   - очистка протухших записей локального кеша
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prephub/prephub-analytics/config"
	"github.com/prephub/prephub-analytics/internal/application/analytics"
	"github.com/prephub/prephub-analytics/internal/application/query"
	"github.com/prephub/prephub-analytics/internal/domain/activity"
	"github.com/prephub/prephub-analytics/internal/domain/leaderboard"
	"github.com/prephub/prephub-analytics/internal/infrastructure/cache"
	"github.com/prephub/prephub-analytics/internal/infrastructure/persistence/memory"
	"github.com/prephub/prephub-analytics/internal/infrastructure/persistence/postgres"
	"github.com/prephub/prephub-analytics/internal/infrastructure/persistence/redis"
	"github.com/prephub/prephub-analytics/internal/infrastructure/scheduler"
	"github.com/prephub/prephub-analytics/internal/infrastructure/scheduler/jobs"
	"github.com/prephub/prephub-analytics/pkg/logger"
	"github.com/prephub/prephub-analytics/pkg/timeutil"
	"github.com/prephub/prephub-analytics/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting PrepHub analytics worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.String("storage", string(cfg.Storage.Driver)),
	)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		Pretty:      cfg.Observability.TracingPretty,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	cal := timeutil.NewCalendar(cfg.App.Location, timeutil.SystemClock{})

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	deps := analytics.Dependencies{
		Calendar: cal,
		Goals: activity.GoalThresholds{
			MockTests:    cfg.Goals.MockTests,
			DSAProblems:  cfg.Goals.DSAProblems,
			StudyMinutes: cfg.Goals.StudyMinutes,
		},
		TTLs: query.CacheTTLs{
			Dashboard:     cfg.Cache.DashboardTTL,
			Leaderboard:   cfg.Cache.LeaderboardTTL,
			Position:      cfg.Cache.PositionTTL,
			FilterOptions: cfg.Cache.FilterOptionsTTL,
		},
		Engine: leaderboard.EngineConfig{
			Badges: leaderboard.BadgeRules{
				AccuracyMaster:    cfg.Leaderboard.AccuracyMasterMin,
				SpeedDemonSeconds: cfg.Leaderboard.SpeedDemonMaxSeconds,
				ConsistentTests:   cfg.Leaderboard.ConsistentMinTests,
				HighScorer:        cfg.Leaderboard.HighScorerMin,
			},
			AwardBadges: cfg.Features.IsEnabled(config.FeatureLeaderboardBadges),
		},
		Logger: log,
	}

	closeStorage, err := setupStorage(ctx, cfg, log, &deps)
	if err != nil {
		return err
	}
	defer closeStorage()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. READ CACHE
	// ─────────────────────────────────────────────────────────────────────────
	var local *cache.Local
	if cfg.Features.IsEnabled(config.FeatureCacheRedis) {
		redisCache, err := redis.Open(ctx, redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			KeyPrefix:    cfg.Redis.KeyPrefix,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   1,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			// Кеш опционален: без Redis переходим на локальный.
			log.Warn("redis unavailable, falling back to local cache", logger.Err(err))
		} else {
			defer func() { _ = redisCache.Close() }()
			deps.Cache = cache.NewGuarded(redisCache, nil, log)
			log.Info("redis read cache enabled", logger.String("addr", cfg.Redis.Host))
		}
	}
	if deps.Cache == nil {
		local = cache.NewLocal(timeutil.SystemClock{})
		deps.Cache = local
	}

	service := analytics.NewService(deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:       log,
		TickInterval: cfg.Scheduler.TickInterval,
		JobTimeout:   cfg.Scheduler.JobTimeout,
		RunOnStart:   cfg.Scheduler.RunOnStart,
	})

	if cfg.Scheduler.Enabled {
		if cfg.Features.IsEnabled(config.FeatureSchedulerLeaderboardWarm) {
			if err := sched.Register(
				jobs.NewWarmLeaderboardJob(service, log),
				scheduler.NewIntervalSchedule(cfg.Scheduler.LeaderboardWarmupEvery),
			); err != nil {
				return fmt.Errorf("failed to register leaderboard warm-up: %w", err)
			}
		}
		// Redis сам вытесняет протухшие ключи.
		if local != nil && cfg.Features.IsEnabled(config.FeatureSchedulerCacheSweep) {
			if err := sched.Register(
				jobs.NewSweepCacheJob(local, log),
				scheduler.NewIntervalSchedule(cfg.Scheduler.CacheSweepInterval),
			); err != nil {
				return fmt.Errorf("failed to register cache sweep: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	log.Info("PrepHub analytics worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal, stopping...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if sched.IsRunning() {
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out waiting for jobs")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}

// setupStorage fills the repository fields of deps and returns a close func.
func setupStorage(ctx context.Context, cfg *config.Config, log *logger.Logger, deps *analytics.Dependencies) (func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on exit")
		repos := memory.NewRepositories(memory.NewStore())
		deps.Users = repos.Users
		deps.Submissions = repos.Submissions
		deps.Stats = repos.Stats
		deps.Days = repos.Activity
		deps.Leaderboard = repos.Leaderboard
		return func() {}, nil

	case config.StoragePostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Database.URL
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
		pgCfg.MinConns = int32(cfg.Database.MinConns)
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

		log.Info("connecting to database...")
		conn, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if cfg.Storage.RunMigrations {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}

		repos := postgres.NewRepositories(conn)
		deps.Users = repos.Users
		deps.Submissions = repos.Submissions
		deps.Stats = repos.Stats
		deps.Days = repos.Activity
		deps.Leaderboard = repos.Leaderboard
		return func() {
			log.Info("closing database connection...")
			conn.Close()
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == string(logger.FormatConsole) {
		opts.Format = logger.FormatConsole
	}
	return logger.New(opts).With(logger.String("service", cfg.App.Name))
}

// Compile-time checks for wiring.
var (
	_ jobs.LeaderboardReader = (*analytics.Service)(nil)
	_ jobs.Sweeper           = (*cache.Local)(nil)
)
