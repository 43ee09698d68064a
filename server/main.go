package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatflow/api/routes"
	"seatflow/internal/broadcast"
	"seatflow/internal/directory"
	"seatflow/internal/fairness"
	"seatflow/internal/notifications"
	"seatflow/internal/prediction"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/database"
	"seatflow/internal/waitlist"
	"seatflow/pkg/cache"
	"seatflow/pkg/logger"
	"seatflow/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	// Load config
	cfg := config.Load()

	// Set Gin mode (debug/release)
	gin.SetMode(cfg.GinMode)

	// Initialize DB
	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect:", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.MigrateConstraints(db.GetPostgreSQL()); err != nil {
		// Queries still work without the composite indexes, just slower.
		appLogger.Error("failed to create indexes", slog.Any("error", err))
	}

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiterConfig := &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			JoinRequests:    cfg.RateLimit.JoinRequests,
			StaffRequests:   cfg.RateLimit.StaffRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		}

		rateLimiter = ratelimit.NewRateLimiter(db.GetRedisClient(), rateLimiterConfig)
		appLogger.Info("Rate limiter initialized",
			slog.Bool("enabled", cfg.RateLimit.Enabled),
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Notification dispatcher: Kafka when configured, log-only otherwise
	var dispatcher notifications.Dispatcher
	if cfg.Kafka.Enabled {
		kafkaDispatcher, err := notifications.NewKafkaDispatcher(&notifications.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.NotificationTopic,
			RetryMax: 3,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			appLogger.Error("Failed to initialize Kafka dispatcher, falling back to log-only",
				slog.Any("error", err))
			dispatcher = notifications.NewLogDispatcher(appLogger)
		} else {
			dispatcher = kafkaDispatcher
			appLogger.Info("Kafka notification dispatcher initialized",
				slog.String("topic", cfg.Kafka.NotificationTopic))
		}
	} else {
		dispatcher = notifications.NewLogDispatcher(appLogger)
		appLogger.Info("Kafka disabled, notifications go to the log")
	}
	defer dispatcher.Close()

	// Global cache client, used by components that are not handed a client
	if err := cache.Init(cache.Config{
		Address:  cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}); err != nil {
		appLogger.Error("Failed to initialize cache client", slog.Any("error", err))
	} else {
		defer cache.Close()
	}

	// Shared infrastructure
	cacheService := cache.NewService(db.GetRedisClient())
	hub := broadcast.NewHub(cfg.Waitlist.UpdateHistoryCap, appLogger)
	store := waitlist.NewStore(cacheService, db.GetRedisClient(), cfg.Redis.WaitlistTTL)

	// Directory and prediction
	directoryRepo := directory.NewRepository(db.GetPostgreSQL(), cacheService)
	predictor := prediction.NewPredictor(directory.NewContextSource(directoryRepo), appLogger)
	sampleRepo := prediction.NewSampleRepository(db.GetPostgreSQL())

	trainer := prediction.NewTrainer(sampleRepo, predictor, &prediction.TrainerConfig{
		Interval:   cfg.Waitlist.TrainingInterval,
		MinSamples: cfg.Waitlist.MinTrainingSamples,
		Window:     30 * 24 * time.Hour,
	}, appLogger)

	trainerCtx, trainerCancel := context.WithCancel(context.Background())
	defer trainerCancel()
	trainer.Start(trainerCtx)
	defer trainer.Stop()

	// Fairness auditing
	auditor := fairness.NewAuditor(fairness.NewOutcomeRepository(db.GetPostgreSQL()), sampleRepo, appLogger)

	// Position engine and its background jobs
	engine := waitlist.NewEngine(store, predictor, hub, dispatcher, auditor,
		directory.NewSeedSource(directoryRepo), &waitlist.EngineConfig{
			ReminderLead:  cfg.Waitlist.ReminderLead,
			PeakStartHour: cfg.Waitlist.PeakStartHour,
			PeakEndHour:   cfg.Waitlist.PeakEndHour,
		}, appLogger)

	scheduler := waitlist.NewScheduler(engine, &waitlist.SchedulerConfig{
		RankRefreshInterval:       cfg.Waitlist.RankRefreshInterval,
		PredictionRefreshInterval: cfg.Waitlist.PredictionRefreshInterval,
	}, appLogger)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	scheduler.Start(schedulerCtx)
	defer scheduler.Stop()

	// Setup router with rate limiter
	router := setupRouter(cfg, db, engine, hub, auditor, rateLimiter)

	// HTTP server
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_status", fmt.Sprintf("http://localhost:%s%s/status", cfg.Port, cfg.GetAPIBasePath())),
			slog.String("version", cfg.APIVersion),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, engine *waitlist.Engine,
	hub *broadcast.Hub, auditor *fairness.Auditor, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	ginEngine := gin.New()
	appLogger := logger.GetDefault()

	// Built-in middleware: logs requests + recovers from panics
	ginEngine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	// CORS configuration
	ginEngine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Global rate limiting middleware (applied to all routes)
	if rateLimiter != nil {
		ginEngine.Use(ratelimit.Middleware(rateLimiter))
		appLogger.Info("Rate limiting middleware applied to all routes")
	}

	// Initialize and setup routes
	appRouter := routes.NewRouter(cfg, db, engine, hub, auditor, appLogger)
	appRouter.SetupRoutes(ginEngine)

	return ginEngine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
