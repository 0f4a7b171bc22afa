package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"image-authenticity-service/internal/config"
	"image-authenticity-service/internal/handlers"
	"image-authenticity-service/internal/middleware"
	"image-authenticity-service/internal/ml"
	"image-authenticity-service/internal/services"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Load classifier ensemble once at startup; it is read-only shared
	// state across requests. Forensic detectors keep working even when no
	// model artifact is present, so startup is not gated on readiness.
	limiter := rate.NewLimiter(rate.Limit(cfg.InferenceRPS), cfg.InferenceBurst)
	ensemble := ml.NewEnsemble(cfg.ModelDir, cfg.LowConfidence, limiter, logger)
	if !ensemble.Ready() {
		logger.Warn("Serving with forensics-only verdicts until model artifacts are provided",
			zap.String("model_dir", cfg.ModelDir))
	}

	// Initialize analysis pipeline
	analysisService := services.NewAnalysisService(cfg, logger, ensemble)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(analysisService)
	analyzeHandler := handlers.NewAnalyzeHandler(analysisService)
	modelHandler := handlers.NewModelHandler(analysisService)
	statsHandler := handlers.NewStatsHandler(analysisService)

	// Initialize middlewares
	authMiddleware := middleware.NewAuthMiddleware(cfg)
	loggerMiddleware := middleware.NewLoggerMiddleware(logger)
	recoveryMiddleware := middleware.NewRecoveryMiddleware(logger)
	corsMiddleware := middleware.NewCORSMiddleware()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(logger, 5, 20)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Apply global middlewares
	router.Use(loggerMiddleware.RequestLogger())
	router.Use(recoveryMiddleware.RecoveryWithZap())
	router.Use(corsMiddleware.SetupCORS())
	router.Use(rateLimitMiddleware.RateLimit())

	// Health and readiness endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Protected endpoints (auth required)
	protected := router.Group("/")
	protected.Use(authMiddleware.AuthRequired())
	{
		protected.POST("/analyze", analyzeHandler.Analyze)
		protected.POST("/analyze/base64", analyzeHandler.AnalyzeBase64)
		protected.GET("/models", modelHandler.GetModels)
		protected.GET("/stats", statsHandler.GetStats)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Run server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server exited gracefully")
	}
}

// initLogger initializes the logger with proper configuration
func initLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	return config.Build()
}
