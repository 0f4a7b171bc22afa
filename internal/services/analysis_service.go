package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"image-authenticity-service/internal/config"
	"image-authenticity-service/internal/forensics"
	"image-authenticity-service/internal/imaging"
	"image-authenticity-service/internal/ml"
	"image-authenticity-service/internal/models"
)

// AnalysisService owns the pipeline sequence: decode, fan out the four
// detectors, aggregate, assemble. One instance serves all requests; every
// per-request value is owned by the invocation.
type AnalysisService struct {
	cfg        *config.Config
	logger     *zap.Logger
	loader     *imaging.Loader
	classifier ml.Classifier
	ela        forensics.ELADetector
	metadata   forensics.MetadataDetector
	noise      forensics.NoiseDetector
	rules      VerdictRules

	stats      stats
	statsMutex sync.RWMutex
}

type stats struct {
	totalAnalyses      int64
	fabricatedDetected int64
	flaggedForReview   int64
	totalProcessing    time.Duration
}

// NewAnalysisService wires the pipeline. The classifier is an explicit
// dependency so tests can inject a mock ensemble.
func NewAnalysisService(cfg *config.Config, logger *zap.Logger, classifier ml.Classifier) *AnalysisService {
	return &AnalysisService{
		cfg:        cfg,
		logger:     logger,
		loader:     imaging.NewLoader(cfg.MaxFileSizeMB*1024*1024, cfg.MaxPixels),
		classifier: classifier,
		ela: forensics.ELADetector{
			Quality:       cfg.ELAQuality,
			MeanThreshold: cfg.ELAMeanThreshold,
		},
		metadata: forensics.MetadataDetector{},
		noise: forensics.NoiseDetector{
			VarianceMin: cfg.NoiseVarianceMin,
			VarianceMax: cfg.NoiseVarianceMax,
		},
		rules: VerdictRules{
			FakeProbThreshold: cfg.FakeProbThreshold,
			LowConfidence:     cfg.LowConfidence,
			FlagPenalty:       cfg.FlagPenalty,
		},
	}
}

// Analyze runs the full pipeline over one image. On failure it returns a
// typed error together with a minimal result carrying only the request id;
// a partial verdict is never surfaced.
func (s *AnalysisService) Analyze(ctx context.Context, data []byte, filename string) (*models.AnalysisResult, error) {
	id := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	// Loading. A loader failure aborts: no pixels means no analysis.
	raw, meta, err := s.loader.Decode(data, filename)
	if err != nil {
		s.logger.Warn("Image decode rejected",
			zap.String("id", id), zap.String("filename", filename), zap.Error(err))
		return s.errorResult(id), err
	}

	// Analyzing. The four detectors have no data dependency on one
	// another; each writes only its own slot, read after the group is
	// done. Detector-level failures live inside the findings and never
	// abort the pipeline.
	var (
		elaRes   models.ELAResult
		metaRes  models.MetadataResult
		noiseRes models.NoiseResult
		pred     *ml.Prediction
		mlErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		elaRes = s.ela.Run(raw)
		return nil
	})
	g.Go(func() error {
		metaRes = s.metadata.Run(meta)
		return nil
	})
	g.Go(func() error {
		noiseRes = s.noise.Run(raw)
		return nil
	})
	g.Go(func() error {
		pred, mlErr = s.classifier.Predict(gctx, raw.Pixels)
		return nil
	})

	done := make(chan struct{})
	go func() {
		g.Wait() //nolint:errcheck // goroutines above never return errors
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// In-flight detector work is abandoned; its result, if it
		// arrives, is discarded.
		s.logger.Error("Analysis timed out",
			zap.String("id", id), zap.Duration("budget", s.cfg.AnalysisTimeout))
		return s.errorResult(id), fmt.Errorf("analysis timed out after %s: %w",
			s.cfg.AnalysisTimeout, ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		return s.errorResult(id), fmt.Errorf("analysis timed out after %s: %w",
			s.cfg.AnalysisTimeout, err)
	}

	// Aggregating.
	verdict := s.rules.Decide(elaRes, metaRes, noiseRes, pred)

	result := &models.AnalysisResult{
		ID:               id,
		Confidence:       verdict.Confidence,
		ELA:              &elaRes,
		Metadata:         &metaRes,
		Noise:            &noiseRes,
		ForensicFlags:    verdict.FlagCount,
		ForensicVerdict:  verdict.Label,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if pred != nil {
		result.Prediction = pred.Prediction
		result.RealProb = pred.RealProb
		result.FakeProb = pred.FakeProb
		result.FlagReview = pred.FlagReview
		result.ModelVotes = pred.ModelVotes
	} else {
		// ML degraded to a detector-level failure: neutral priors keep
		// the probability invariant, and the result always goes to
		// human review.
		if mlErr == nil {
			mlErr = ml.ErrModelUnavailable
		}
		result.Prediction = "Unknown"
		result.RealProb = 0.5
		result.FakeProb = 0.5
		result.FlagReview = true
		result.MLError = mlErr.Error()
		s.logger.Warn("ML stage unavailable, forensics-only verdict",
			zap.String("id", id), zap.Error(mlErr))
	}

	s.recordStats(result, time.Since(start))
	s.logger.Info("Analysis complete",
		zap.String("id", id),
		zap.String("verdict", verdict.Label),
		zap.Int("forensic_flags", verdict.FlagCount),
		zap.Float64("confidence", verdict.Confidence),
		zap.Int64("processing_ms", result.ProcessingTimeMs))
	return result, nil
}

// Ready reports the health-probe view of the pipeline
func (s *AnalysisService) Ready() models.ReadyResponse {
	return models.ReadyResponse{
		MLReady: s.classifier.Ready(),
		// Forensic detectors are compiled in and carry no external
		// dependency; they are operational whenever the service is.
		ForensicsAvailable: true,
	}
}

// ModelNames returns the loaded classifier model names
func (s *AnalysisService) ModelNames() []string {
	return s.classifier.ModelNames()
}

// GetStats returns aggregate service statistics
func (s *AnalysisService) GetStats() models.StatsResponse {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()

	var avg float64
	if s.stats.totalAnalyses > 0 {
		avg = float64(s.stats.totalProcessing.Milliseconds()) / float64(s.stats.totalAnalyses)
	}
	return models.StatsResponse{
		TotalAnalyses:      s.stats.totalAnalyses,
		FabricatedDetected: s.stats.fabricatedDetected,
		FlaggedForReview:   s.stats.flaggedForReview,
		AvgResponseTimeMs:  avg,
	}
}

func (s *AnalysisService) errorResult(id string) *models.AnalysisResult {
	return &models.AnalysisResult{ID: id}
}

func (s *AnalysisService) recordStats(result *models.AnalysisResult, elapsed time.Duration) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	s.stats.totalAnalyses++
	s.stats.totalProcessing += elapsed
	if result.ForensicVerdict == LabelFabricated {
		s.stats.fabricatedDetected++
	}
	if result.FlagReview {
		s.stats.flaggedForReview++
	}
}
