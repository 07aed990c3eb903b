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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mistapp/backend/internal/config"
	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/handlers"
	"github.com/mistapp/backend/internal/kernel"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/middleware"
	"github.com/mistapp/backend/internal/search"
	"github.com/mistapp/backend/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== Mist server starting ===", zap.String("environment", cfg.Environment))

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Component:    "server",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Failed to initialize tracing, continuing without it", err)
	}

	metrics.Initialize()

	k, err := kernel.Build(context.Background(), cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize dependencies", err)
	}
	k.OnCleanup(func(ctx context.Context) error { return telemetry.Shutdown(ctx, tp) })

	if err := database.MigrateDB(k.DB()); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	// Initialize handlers
	h := handlers.NewHandlers(k.DB(), k.Auth())
	if client := k.Search(); client != nil {
		if redisClient := k.Cache(); redisClient != nil {
			h.SetSearchClient(search.NewCachedClient(client, redisClient, search.DefaultResultTTL))
		} else {
			h.SetSearchClient(client)
		}
	}
	if uploader := k.Uploader(); uploader != nil {
		h.SetUploader(uploader)
	}
	h.SetPushSender(k.Push())
	if redisClient := k.Cache(); redisClient != nil {
		h.SetResponseCache(redisClient)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(cfg.Telemetry.ServiceName)...)
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID", "X-Correlation-ID"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	if redisClient := k.Cache(); redisClient != nil {
		r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := database.Health(); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = err.Error()
		}
		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"database":  dbStatus,
			"timestamp": time.Now().UTC(),
			"service":   "mist-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterRoutes(r, h, middleware.RequireAuth(k.Auth()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Mist backend listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	if err := k.Cleanup(ctx); err != nil {
		logger.ErrorWithFields("Cleanup failed", err)
	}

	logger.Log.Info("Server exited")
}
