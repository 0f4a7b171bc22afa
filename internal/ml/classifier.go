package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Prediction labels. The external contract uses these exact strings.
const (
	LabelReal = "Real"
	LabelFake = "AI/Fake"
)

// ErrModelUnavailable means no classifier model finished loading; the
// pipeline degrades to a forensics-only verdict.
var ErrModelUnavailable = errors.New("no classifier models loaded")

// Classifier is the handle the orchestrator receives at construction.
// Keeping it an interface lets tests inject a mock ensemble.
type Classifier interface {
	Predict(ctx context.Context, img image.Image) (*Prediction, error)
	Ready() bool
	ModelNames() []string
}

// Prediction is the combined output of the learned stage
type Prediction struct {
	Prediction string
	Confidence float64 // 0-100, max of the combined probabilities
	RealProb   float64
	FakeProb   float64
	FlagReview bool
	ModelVotes map[string]string
}

// Model is one member of the ensemble: a logistic head over the shared
// image feature vector, loaded from a weight artifact on disk.
type Model struct {
	Name    string    `json:"name"`
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
}

// Ensemble runs every loaded model over the same feature vector and
// soft-votes: the combined probability is the arithmetic mean of per-model
// probabilities, while ModelVotes records each model's own hard label so
// disagreement stays auditable. Read-only after construction; safe for
// concurrent use.
type Ensemble struct {
	logger        *zap.Logger
	models        map[string]Model
	names         []string // sorted, for deterministic output
	lowConfidence float64  // percent
	limiter       *rate.Limiter
}

// modelFiles maps ensemble member names to their weight artifacts
var modelFiles = map[string]string{
	"resnet34":        "resnet34.json",
	"efficientnet_b0": "efficientnet_b0.json",
	"mobilenet_v2":    "mobilenet_v2.json",
}

// NewEnsemble loads all weight artifacts from modelDir. Missing or corrupt
// artifacts are skipped with a warning; an ensemble with zero models is
// still returned and reports not ready.
func NewEnsemble(modelDir string, lowConfidence float64, limiter *rate.Limiter, logger *zap.Logger) *Ensemble {
	e := &Ensemble{
		logger:        logger,
		models:        make(map[string]Model),
		lowConfidence: lowConfidence,
		limiter:       limiter,
	}

	for name, fileName := range modelFiles {
		path := filepath.Join(modelDir, fileName)
		model, err := loadModel(path)
		if err != nil {
			logger.Warn("Model artifact not loaded, skipping",
				zap.String("model", name), zap.String("path", path), zap.Error(err))
			continue
		}
		model.Name = name
		e.models[name] = model
		logger.Info("Loaded model", zap.String("model", name))
	}

	if len(e.models) == 0 {
		logger.Error("No classifier models loaded, ML stage will be unavailable")
	} else {
		logger.Info("Successfully loaded models", zap.Int("count", len(e.models)))
	}

	e.names = sortedNames(e.models)
	return e
}

// NewEnsembleFromModels builds an ensemble from in-memory models; used by
// tests and tooling that do not load artifacts from disk.
func NewEnsembleFromModels(models []Model, lowConfidence float64, logger *zap.Logger) *Ensemble {
	e := &Ensemble{
		logger:        logger,
		models:        make(map[string]Model, len(models)),
		lowConfidence: lowConfidence,
		limiter:       rate.NewLimiter(rate.Inf, 1),
	}
	for _, m := range models {
		e.models[m.Name] = m
	}
	e.names = sortedNames(e.models)
	return e
}

func loadModel(path string) (Model, error) {
	var model Model
	data, err := os.ReadFile(path)
	if err != nil {
		return model, err
	}
	if err := json.Unmarshal(data, &model); err != nil {
		return model, fmt.Errorf("parse weights: %w", err)
	}
	if len(model.Weights) != FeatureDim {
		return model, fmt.Errorf("weight vector has %d entries, want %d", len(model.Weights), FeatureDim)
	}
	return model, nil
}

func sortedNames(models map[string]Model) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ready reports whether at least one model finished loading
func (e *Ensemble) Ready() bool {
	return len(e.models) > 0
}

// ModelNames returns the loaded model names in stable order
func (e *Ensemble) ModelNames() []string {
	names := make([]string, len(e.names))
	copy(names, e.names)
	return names
}

// Predict runs the full ensemble over one image. Inference is deterministic:
// the same bytes and the same artifacts always yield the same prediction.
func (e *Ensemble) Predict(ctx context.Context, img image.Image) (*Prediction, error) {
	if len(e.models) == 0 {
		return nil, ErrModelUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.limiter.Allow() {
		return nil, errors.New("inference rate limit exceeded")
	}

	features := ExtractFeatures(img)

	var sumFake float64
	votes := make(map[string]string, len(e.names))
	for _, name := range e.names {
		model := e.models[name]
		fakeProb := model.score(features)
		sumFake += fakeProb
		if fakeProb >= 0.5 {
			votes[name] = LabelFake
		} else {
			votes[name] = LabelReal
		}
	}

	fakeProb := sumFake / float64(len(e.names))
	realProb := 1 - fakeProb

	pred := &Prediction{
		RealProb:   round4(realProb),
		FakeProb:   round4(fakeProb),
		ModelVotes: votes,
	}
	if fakeProb >= realProb {
		pred.Prediction = LabelFake
		pred.Confidence = round2(fakeProb * 100)
	} else {
		pred.Prediction = LabelReal
		pred.Confidence = round2(realProb * 100)
	}
	pred.FlagReview = pred.Confidence < e.lowConfidence
	return pred, nil
}

// score applies the logistic head and returns the fake probability
func (m Model) score(features []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}
	return 1 / (1 + math.Exp(-z))
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
