package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(10), cfg.MaxFileSizeMB)
	assert.Equal(t, 30*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 90, cfg.ELAQuality)
	assert.Equal(t, 14.0, cfg.ELAMeanThreshold)
	assert.Equal(t, 2.0, cfg.NoiseVarianceMin)
	assert.Equal(t, 800.0, cfg.NoiseVarianceMax)
	assert.Equal(t, 0.85, cfg.FakeProbThreshold)
	assert.Equal(t, 75.0, cfg.LowConfidence)
	assert.Equal(t, 15.0, cfg.FlagPenalty)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ELA_QUALITY", "85")
	t.Setenv("ELA_MEAN_THRESHOLD", "20.5")
	t.Setenv("ANALYSIS_TIMEOUT_SEC", "5")

	cfg, err := LoadConfig(zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 85, cfg.ELAQuality)
	assert.Equal(t, 20.5, cfg.ELAMeanThreshold)
	assert.Equal(t, 5*time.Second, cfg.AnalysisTimeout)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric threshold", "ELA_MEAN_THRESHOLD", "high"},
		{"non-numeric size", "MAX_FILE_SIZE_MB", "huge"},
		{"quality out of range", "ELA_QUALITY", "0"},
		{"inverted noise band", "NOISE_VARIANCE_MIN", "9001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig(zap.NewNop())
			assert.Error(t, err)
		})
	}
}
