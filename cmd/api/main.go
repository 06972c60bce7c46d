package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	deliveryHTTP "github.com/frontandrew/ivisit/internal/delivery/http"
	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/attempts"
	"github.com/frontandrew/ivisit/internal/pkg/clock"
	"github.com/frontandrew/ivisit/internal/pkg/config"
	"github.com/frontandrew/ivisit/internal/pkg/database"
	"github.com/frontandrew/ivisit/internal/pkg/jwt"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/frontandrew/ivisit/internal/pkg/redis"
	"github.com/frontandrew/ivisit/internal/repository/cached"
	"github.com/frontandrew/ivisit/internal/repository/postgres"
	"github.com/frontandrew/ivisit/internal/scheduler"
	"github.com/frontandrew/ivisit/internal/usecase/archive"
	"github.com/frontandrew/ivisit/internal/usecase/entry"
	"github.com/frontandrew/ivisit/internal/usecase/incident"
	"github.com/frontandrew/ivisit/internal/usecase/overstay"
	"github.com/frontandrew/ivisit/internal/usecase/pass"
	"github.com/frontandrew/ivisit/internal/usecase/session"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// =========================================================================
	// Загрузка конфигурации
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// =========================================================================
	// Инициализация logger
	// =========================================================================

	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetGlobalLogger(log)

	log.Info("Starting iVisit API server", map[string]interface{}{
		"address": cfg.Server.Address(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// Подключение к PostgreSQL
	// =========================================================================

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer database.Close(db)

	log.Info("Connected to PostgreSQL", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	})

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("Failed to apply migrations", map[string]interface{}{
				"error": err.Error(),
			})
		}
		log.Info("Migrations applied")
	}

	// =========================================================================
	// Подключение к Redis
	// =========================================================================

	rdb, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer func() { _ = rdb.Close() }()

	log.Info("Connected to Redis", map[string]interface{}{
		"host": cfg.Redis.Host,
		"port": cfg.Redis.Port,
	})

	// =========================================================================
	// Хранилище, метрики, часы
	// =========================================================================

	store := postgres.NewStore(db)
	passReader := cached.NewPassRepository(store.Passes(), rdb, cfg.Redis.PassTTL, log)
	m := metrics.New(prometheus.DefaultRegisterer)
	clk := clock.Real()
	policy := domain.OverstayPolicy{
		Soft: cfg.Overstay.SoftThreshold,
		Hard: cfg.Overstay.HardThreshold,
	}

	// =========================================================================
	// Создание use case services
	// =========================================================================

	passService := pass.NewService(store, passReader, clk, log)
	entryService := entry.NewService(store, cfg.Entry.DuplicateWindow, clk, m, log)
	sessionService := session.NewService(store, passService, entryService, policy, clk, m, log)
	incidentService := incident.NewService(store, passService, clk, m, log)
	overstayService := overstay.NewService(store, passService, incidentService, policy, clk, m, log)
	archiveService := archive.NewService(store, cfg.Archive.RetentionYears, clk, m, log)

	log.Info("Use case services initialized", map[string]interface{}{
		"overstay_soft": policy.Soft.String(),
		"overstay_hard": policy.Hard.String(),
	})

	// =========================================================================
	// HTTP handlers и router
	// =========================================================================

	tokenService := jwt.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.AccessExpiry)
	failures := attempts.New(rdb, "ivisit:auth:", cfg.Auth.MaxFailedAttempts, cfg.Auth.FailureWindow)

	handlers := deliveryHTTP.Handlers{
		Session:  deliveryHTTP.NewSessionHandler(sessionService, entryService, log),
		Entry:    deliveryHTTP.NewEntryHandler(entryService, cfg.Entry.RecentLimit, log),
		Pass:     deliveryHTTP.NewPassHandler(passService, log),
		Incident: deliveryHTTP.NewIncidentHandler(incidentService, log),
		Job:      deliveryHTTP.NewJobHandler(overstayService, archiveService, log),
	}

	router := deliveryHTTP.NewRouter(handlers, tokenService, failures, m, prometheus.DefaultGatherer, cfg, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// =========================================================================
	// Фоновые задачи
	// =========================================================================

	hour, minute, err := cfg.Archive.Clock()
	if err != nil {
		log.Fatal("Invalid archive schedule", map[string]interface{}{
			"error": err.Error(),
		})
	}

	jobs := scheduler.New(rdb, cfg.Scheduler.LockTTL, m, log,
		scheduler.Job{
			Name:     "overstay",
			Schedule: scheduler.Every(cfg.Overstay.Interval),
			Run: func(ctx context.Context) error {
				_, err := overstayService.Evaluate(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "archive",
			Schedule: scheduler.Daily{Hour: hour, Minute: minute},
			Run: func(ctx context.Context) error {
				_, err := archiveService.Run(ctx)
				return err
			},
		},
	)

	if cfg.Scheduler.Enabled {
		jobs.Start(ctx)
		log.Info("Scheduler started", map[string]interface{}{
			"overstay_interval": cfg.Overstay.Interval.String(),
			"archive_at":        cfg.Archive.RunAt,
		})
	} else {
		log.Warn("Scheduler disabled, background jobs run only on demand")
	}

	// =========================================================================
	// Запуск сервера и graceful shutdown
	// =========================================================================

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("API server listening", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Graceful shutdown failed", map[string]interface{}{
				"error": err.Error(),
			})
			// Принудительное закрытие
			_ = srv.Close()
		}

		// дожидаемся начатых прогонов, пока хранилище еще открыто
		jobs.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	log.Info("Server stopped gracefully")
}
