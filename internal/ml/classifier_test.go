package ml

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 3), uint8(y * 4), 120, 255})
		}
	}
	return img
}

func zeroWeights() []float64 {
	return make([]float64, FeatureDim)
}

func biasedModel(name string, bias float64) Model {
	return Model{Name: name, Bias: bias, Weights: zeroWeights()}
}

func TestPredictProbabilitiesSumToOne(t *testing.T) {
	ensemble := NewEnsembleFromModels([]Model{
		biasedModel("a", -1.5),
		biasedModel("b", 0.5),
	}, 75, zap.NewNop())

	pred, err := ensemble.Predict(context.Background(), testImage())

	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.RealProb+pred.FakeProb, 1e-3)
	assert.GreaterOrEqual(t, pred.Confidence, 50.0)
	assert.LessOrEqual(t, pred.Confidence, 100.0)
}

func TestPredictIsDeterministic(t *testing.T) {
	ensemble := NewEnsembleFromModels([]Model{
		biasedModel("a", -0.3),
		biasedModel("b", 1.1),
		biasedModel("c", -2.0),
	}, 75, zap.NewNop())

	first, err := ensemble.Predict(context.Background(), testImage())
	require.NoError(t, err)
	second, err := ensemble.Predict(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPredictModelVotesRecordDisagreement(t *testing.T) {
	// Strong opposite biases force a split vote while the combined
	// probability stays a soft mean.
	ensemble := NewEnsembleFromModels([]Model{
		biasedModel("real_leaning", -4),
		biasedModel("fake_leaning", 4),
	}, 75, zap.NewNop())

	pred, err := ensemble.Predict(context.Background(), testImage())

	require.NoError(t, err)
	assert.Equal(t, LabelReal, pred.ModelVotes["real_leaning"])
	assert.Equal(t, LabelFake, pred.ModelVotes["fake_leaning"])
	// sigmoid(-4)+sigmoid(4) averages to 0.5 exactly
	assert.InDelta(t, 0.5, pred.FakeProb, 1e-3)
}

func TestPredictFlagsLowConfidence(t *testing.T) {
	ensemble := NewEnsembleFromModels([]Model{biasedModel("neutral", 0)}, 75, zap.NewNop())

	pred, err := ensemble.Predict(context.Background(), testImage())

	require.NoError(t, err)
	assert.True(t, pred.FlagReview, "coin-flip confidence is below the review threshold")

	confident := NewEnsembleFromModels([]Model{biasedModel("sure", -6)}, 75, zap.NewNop())
	pred, err = confident.Predict(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, LabelReal, pred.Prediction)
	assert.False(t, pred.FlagReview)
}

func TestPredictEmptyEnsemble(t *testing.T) {
	ensemble := NewEnsembleFromModels(nil, 75, zap.NewNop())

	assert.False(t, ensemble.Ready())
	_, err := ensemble.Predict(context.Background(), testImage())
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestPredictHonorsCanceledContext(t *testing.T) {
	ensemble := NewEnsembleFromModels([]Model{biasedModel("a", 0)}, 75, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ensemble.Predict(ctx, testImage())

	assert.Error(t, err)
}

func TestNewEnsembleLoadsArtifactsFromDisk(t *testing.T) {
	dir := t.TempDir()

	good := Model{Bias: -0.8, Weights: zeroWeights()}
	data, err := json.Marshal(good)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resnet34.json"), data, 0o644))

	// Wrong feature dimension must be skipped, not loaded
	bad := Model{Bias: 0, Weights: []float64{1, 2, 3}}
	data, err = json.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mobilenet_v2.json"), data, 0o644))

	ensemble := NewEnsemble(dir, 75, newTestLimiter(), zap.NewNop())

	assert.True(t, ensemble.Ready())
	assert.Equal(t, []string{"resnet34"}, ensemble.ModelNames())
}

func TestNewEnsembleEmptyDirNotReady(t *testing.T) {
	ensemble := NewEnsemble(t.TempDir(), 75, newTestLimiter(), zap.NewNop())

	assert.False(t, ensemble.Ready())
	assert.Empty(t, ensemble.ModelNames())
}

func TestExtractFeatures(t *testing.T) {
	features := ExtractFeatures(testImage())

	require.Len(t, features, FeatureDim)
	for i, f := range features {
		assert.False(t, math.IsNaN(f) || math.IsInf(f, 0), "feature %d is not finite", i)
	}
	assert.Equal(t, features, ExtractFeatures(testImage()), "feature extraction is deterministic")
}
