package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/motionforge/api/internal/client"
	"github.com/motionforge/api/internal/config"
	"github.com/motionforge/api/internal/handler"
	"github.com/motionforge/api/internal/logging"
	"github.com/motionforge/api/internal/metrics"
	"github.com/motionforge/api/internal/middleware"
	"github.com/motionforge/api/internal/poller"
	"github.com/motionforge/api/internal/provider"
	"github.com/motionforge/api/internal/service"
	ws "github.com/motionforge/api/internal/websocket"
	"github.com/motionforge/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog := logging.New(cfg.Server.Env, cfg.Server.LogLevel)
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if cfg.Watch.Enabled {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			zlog.Warn("redis not available", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
	}

	// Initialize validator
	validate := validator.New()

	collector := metrics.NewCollector("motionforge", zlog)

	// Provider adapters and registry
	adapters, err := buildAdapters(&cfg.Provider)
	if err != nil {
		zlog.Fatal("failed to configure provider adapters", zap.Error(err))
	}
	if cfg.Provider.APIKey == "" {
		zlog.Warn("provider api key not configured; submissions will be rejected upstream")
	}
	providerClient := client.NewProviderClient(cfg.Provider.Timeout, zlog)
	registry, err := provider.NewRegistry(adapters, providerClient,
		provider.WithLogger(zlog),
		provider.WithRecorder(collector),
	)
	if err != nil {
		zlog.Fatal("failed to create adapter registry", zap.Error(err))
	}
	zlog.Info("provider adapters configured", zap.Strings("adapters", registry.IDs()))

	// Asset store
	store, err := buildStore(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize asset store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	// Watcher queue (optional)
	var enqueuer service.TaskEnqueuer
	if cfg.Watch.Enabled {
		asynqClient := asynq.NewClient(redisOpt(cfg))
		defer asynqClient.Close()
		enqueuer = asynqClient
	}

	// Initialize WebSocket hub
	hub := ws.NewHub(zlog)
	go hub.Run(ctx)

	// Initialize services
	assetService := service.NewAssetService(store, zlog)
	generationService := service.NewGenerationService(assetService, registry, cfg.Upload.MaxBytes, collector, zlog)
	watchService := service.NewWatchService(redisClient, enqueuer, registry, cfg.Watch.Timeout)

	// Initialize handlers
	generateHandler := handler.NewGenerateHandler(generationService, registry, validate, zlog)
	watchHandler := handler.NewWatchHandler(watchService, validate, zlog)

	rateLimiter := middleware.NewRateLimiter(redisClient, zlog)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(zlog, cfg.CORS.AllowOrigins),
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: !cfg.IsDevelopment(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.CORS(cfg.CORS.AllowOrigins))
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid} ${queryParams} ${reqHeaders}\n"
		zlog.Debug("debug access logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		redisOK := false
		if watchService.Enabled() {
			pingCtx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			redisOK = watchService.Ping(pingCtx) == nil
			cancel()
			if !redisOK {
				status = "degraded"
			}
		}
		return c.JSON(fiber.Map{
			"status": status,
			"services": fiber.Map{
				"storage":  cfg.Storage.Driver,
				"adapters": registry.IDs(),
				"provider": cfg.Provider.APIKey != "",
				"watcher":  watchService.Enabled(),
				"redis":    redisOK,
			},
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})))
	app.Get("/adapters", generateHandler.Adapters)

	if cfg.Storage.Driver == config.StorageDriverLocal {
		app.Static("/assets", cfg.Storage.LocalDir, fiber.Static{
			MaxAge: 3600,
		})
	}

	// Generation routes
	app.Post("/generate", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generateHandler.Generate)
	app.Post("/status", generateHandler.Status)
	app.All("/generate", handler.MethodNotAllowed)
	app.All("/status", handler.MethodNotAllowed)

	// Watcher routes
	app.Post("/watch", watchHandler.Start)
	app.Get("/watch/:jobId", watchHandler.Status)
	app.All("/watch", handler.MethodNotAllowed)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	if cfg.Watch.Enabled {
		go startWorkerServer(ctx, cfg, generationService, watchService, hub, zlog)
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zlog.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	zlog.Info("server starting",
		zap.String("addr", addr),
		zap.String("env", cfg.Server.Env),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("watcher", cfg.Watch.Enabled),
	)
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}

// buildAdapters resolves the adapter list: the built-in presets or an
// adapters file, narrowed and ordered by provider.adapters, then pointed at
// the configured base URL and credential.
func buildAdapters(cfg *config.ProviderConfig) ([]provider.Adapter, error) {
	adapters := provider.DefaultAdapters()
	if cfg.AdaptersFile != "" {
		loaded, err := provider.LoadFile(cfg.AdaptersFile)
		if err != nil {
			return nil, err
		}
		adapters = loaded
	}

	adapters, err := provider.Select(adapters, cfg.Adapters)
	if err != nil {
		return nil, err
	}

	out := make([]provider.Adapter, 0, len(adapters))
	for _, a := range adapters {
		if cfg.BaseURL != "" {
			a = a.WithBaseURL(cfg.BaseURL)
		}
		out = append(out, a.WithCredential(cfg.APIKey))
	}
	return out, nil
}

func buildStore(cfg *config.Config, logger *zap.Logger) (client.StorageClient, error) {
	if cfg.Storage.Driver == config.StorageDriverLocal {
		return client.NewFileStore(cfg.Storage.LocalDir, cfg.LocalAssetsURL())
	}
	r2, err := client.NewR2Client(&cfg.R2, logger)
	if err != nil {
		return nil, err
	}
	if !r2.IsConfigured() {
		return nil, errors.New("r2: bucket_name and public_url are required")
	}
	return r2, nil
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func startWorkerServer(
	ctx context.Context,
	cfg *config.Config,
	generationService *service.GenerationService,
	watchService *service.WatchService,
	hub *ws.Hub,
	zlog *zap.Logger,
) {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	srv := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.Watch.Concurrency,
			Queues: map[string]int{
				service.QueueWatch: 1,
			},
			Logger:   zlog.Named("asynq").Sugar(),
			LogLevel: asynqLogLevel,
		},
	)

	watchWorker := worker.NewWatchWorker(generationService, watchService, hub, poller.Poller{
		Interval:             cfg.Watch.Interval,
		Timeout:              cfg.Watch.Timeout,
		MaxConsecutiveErrors: 3,
	}, zlog)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeWatch, watchWorker.ProcessTask)

	if err := srv.Start(mux); err != nil {
		zlog.Error("asynq worker error", zap.Error(err))
		return
	}
	<-ctx.Done()
	srv.Shutdown()
}
