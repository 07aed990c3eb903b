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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mistapp/backend/internal/config"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/middleware"
	"github.com/mistapp/backend/internal/relay"
	"github.com/mistapp/backend/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
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

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  cfg.Telemetry.ServiceName,
		Component:    "relay",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Enabled:      cfg.Telemetry.Enabled,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Failed to initialize tracing, continuing without it", err)
	}

	metrics.Initialize()

	relayServer := relay.NewServer(relay.NewAPIStore(cfg.Server.APIBaseURL), cfg.Secret())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"conversations": relayServer.Registry().Conversations(),
			"service":       "mist-relay",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	// Clients connect to the root path
	r.GET("/", middleware.RequestIDMiddleware(), middleware.CorrelationMiddleware(), gin.WrapH(relayServer))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.RelayPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Mist relay listening",
			zap.Int("port", cfg.Server.RelayPort),
			zap.String("api", cfg.Server.APIBaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start relay", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down relay...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Shutdown does not wait for hijacked websocket connections
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorWithFields("Relay forced to shutdown", err)
	}
	if err := telemetry.Shutdown(ctx, tp); err != nil {
		logger.ErrorWithFields("Failed to flush traces", err)
	}
	logger.Log.Info("Relay exited")
}
