package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all runtime settings. Every forensic threshold is a tuning
// constant exposed here rather than hardcoded in the detectors.
type Config struct {
	Port     string
	APIKey   string
	LogLevel string
	ModelDir string

	// Loader limits
	MaxFileSizeMB int64
	MaxPixels     int64

	// Per-request wall time budget for the whole pipeline
	AnalysisTimeout time.Duration

	// ELA: JPEG re-encode quality and mean-difference cutoff
	ELAQuality       int
	ELAMeanThreshold float64

	// Noise: natural sensor-noise variance band
	NoiseVarianceMin float64
	NoiseVarianceMax float64

	// Verdict fusion
	FakeProbThreshold float64 // ML fake probability treated as high-confidence
	LowConfidence     float64 // percent; below this the result is flagged for review
	FlagPenalty       float64 // percent confidence subtracted per forensic flag

	// Inference rate limiting
	InferenceRPS   float64
	InferenceBurst int
}

func LoadConfig(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		APIKey:   getEnvOrDefault("API_KEY", ""),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		ModelDir: getEnvOrDefault("MODEL_DIR", "/models"),
	}

	var err error
	if cfg.MaxFileSizeMB, err = parseInt("MAX_FILE_SIZE_MB", "10"); err != nil {
		return nil, err
	}
	if cfg.MaxPixels, err = parseInt("MAX_PIXELS", "50000000"); err != nil {
		return nil, err
	}
	timeoutSec, err := parseInt("ANALYSIS_TIMEOUT_SEC", "30")
	if err != nil {
		return nil, err
	}
	cfg.AnalysisTimeout = time.Duration(timeoutSec) * time.Second

	elaQuality, err := parseInt("ELA_QUALITY", "90")
	if err != nil {
		return nil, err
	}
	cfg.ELAQuality = int(elaQuality)

	if cfg.ELAMeanThreshold, err = parseFloat("ELA_MEAN_THRESHOLD", "14.0"); err != nil {
		return nil, err
	}
	if cfg.NoiseVarianceMin, err = parseFloat("NOISE_VARIANCE_MIN", "2.0"); err != nil {
		return nil, err
	}
	if cfg.NoiseVarianceMax, err = parseFloat("NOISE_VARIANCE_MAX", "800.0"); err != nil {
		return nil, err
	}
	if cfg.FakeProbThreshold, err = parseFloat("FAKE_PROB_THRESHOLD", "0.85"); err != nil {
		return nil, err
	}
	if cfg.LowConfidence, err = parseFloat("LOW_CONFIDENCE", "75.0"); err != nil {
		return nil, err
	}
	if cfg.FlagPenalty, err = parseFloat("FLAG_PENALTY", "15.0"); err != nil {
		return nil, err
	}
	if cfg.InferenceRPS, err = parseFloat("INFERENCE_RPS", "10"); err != nil {
		return nil, err
	}
	inferenceBurst, err := parseInt("INFERENCE_BURST", "20")
	if err != nil {
		return nil, err
	}
	cfg.InferenceBurst = int(inferenceBurst)

	if cfg.NoiseVarianceMin > cfg.NoiseVarianceMax {
		return nil, fmt.Errorf("invalid noise variance band: min %.2f > max %.2f",
			cfg.NoiseVarianceMin, cfg.NoiseVarianceMax)
	}
	if cfg.ELAQuality < 1 || cfg.ELAQuality > 100 {
		return nil, fmt.Errorf("invalid ELA quality: %d", cfg.ELAQuality)
	}

	return cfg, nil
}

func parseInt(key, defaultValue string) (int64, error) {
	v, err := strconv.ParseInt(getEnvOrDefault(key, defaultValue), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return v, nil
}

func parseFloat(key, defaultValue string) (float64, error) {
	v, err := strconv.ParseFloat(getEnvOrDefault(key, defaultValue), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
