package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mission-control/biome"
	"mission-control/config"
	"mission-control/handlers"
	"mission-control/logging"
	"mission-control/metrics"
	"mission-control/middleware"
	"mission-control/services"
	"mission-control/store"
	"mission-control/utils"
)

const serviceName = "mission-control"

type backend interface {
	services.EventStore
	services.ParticipantStore
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(serviceName, cfg.LogFormat, nil)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Warn("no .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logging.LogError(logger, "server stopped", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := store.OpenPostgres(ctx, cfg.DatabaseURL, cfg.DBConnectRetries, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return store.NewGormStore(db), closeDB, nil
}

func openStorage(ctx context.Context, cfg *config.Config, app *fiber.App) (services.AssetStorage, error) {
	if cfg.StorageDriver == config.StorageDriverLocal {
		local, err := utils.NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		app.Static("/uploads", local.Dir())
		return local, nil
	}
	return utils.NewR2Storage(ctx, utils.R2Config{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		AccessKeySecret: cfg.R2.AccessKeySecret,
		Bucket:          cfg.R2.Bucket,
		CDNBaseURL:      cfg.R2.CDNBaseURL,
	})
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.BiomeSymmetric() {
		logger.Warn("biome midpoint is not the map center, quadrants will be uneven",
			"map_width", cfg.MapWidth, "map_height", cfg.MapHeight,
			"mid_x", cfg.BiomeMidX, "mid_y", cfg.BiomeMidY)
	}

	db, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		Immutable:             true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContextMiddleware())
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:  "GET,POST,PATCH,OPTIONS,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, X-Request-ID",
		ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
		MaxAge:        86400,
	}))

	storage, err := openStorage(ctx, cfg, app)
	if err != nil {
		return err
	}

	clock := services.SystemClock{}
	lifecycle, err := services.NewLifecycleService(&services.LifecycleConfig{
		Events:       db,
		Participants: db,
		Storage:      storage,
		IDs:          services.UUIDGenerator{},
		Clock:        clock,
		Positions:    services.RandomPositioner{},
		Bounds:       services.MapBounds{Width: cfg.MapWidth, Height: cfg.MapHeight, Margin: cfg.MapMargin},
		Biomes:       biome.Mapper{MidX: cfg.BiomeMidX, MidY: cfg.BiomeMidY},
		CallTimeout:  cfg.CallTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	events := services.NewEventService(db, clock, cfg.CallTimeout, logger)

	sched, err := events.StartExpiryScheduler(ctx, cfg.ExpiryInterval)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logging.LogError(logger, "scheduler shutdown failed", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterMetrics(reg)

	handlers.SetupSystemRoutes(app, reg)
	handlers.SetupEventRoutes(app, events, logger)
	handlers.SetupParticipantRoutes(app, lifecycle, logger)
	handlers.SetupBiomeRoutes(app, lifecycle)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr())
	}()

	logger.Info("server running",
		"addr", cfg.Addr(),
		"store", cfg.StoreDriver,
		"storage", cfg.StorageDriver,
		"allowed_origins", cfg.AllowedOrigins)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
