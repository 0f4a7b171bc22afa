package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"image-authenticity-service/internal/ml"
	"image-authenticity-service/internal/models"
)

func defaultRules() VerdictRules {
	return VerdictRules{
		FakeProbThreshold: 0.85,
		LowConfidence:     75,
		FlagPenalty:       15,
	}
}

func finding(suspicious bool) (models.ELAResult, models.MetadataResult, models.NoiseResult) {
	return models.ELAResult{Suspicious: suspicious},
		models.MetadataResult{Suspicious: suspicious},
		models.NoiseResult{Suspicious: suspicious}
}

func TestDecideRulePrecedence(t *testing.T) {
	tests := []struct {
		name           string
		ela, meta, noi bool
		pred           *ml.Prediction
		wantLabel      string
		wantFlags      int
		wantConfidence float64
	}{
		{
			name: "clean image with confident real score is authentic",
			pred: &ml.Prediction{Prediction: ml.LabelReal, Confidence: 92, RealProb: 0.92, FakeProb: 0.08},
			wantLabel: LabelAuthentic, wantFlags: 0, wantConfidence: 92,
		},
		{
			name: "confident fake with one corroborating flag is fabricated",
			meta: true,
			pred: &ml.Prediction{Prediction: ml.LabelFake, Confidence: 91, RealProb: 0.09, FakeProb: 0.91},
			wantLabel: LabelFabricated, wantFlags: 1, wantConfidence: 76,
		},
		{
			name: "confident fake without any forensic flag falls through",
			pred: &ml.Prediction{Prediction: ml.LabelFake, Confidence: 95, RealProb: 0.05, FakeProb: 0.95},
			wantLabel: LabelAuthentic, wantFlags: 0, wantConfidence: 95,
		},
		{
			name: "forensic majority is fabricated regardless of ML",
			ela:  true, noi: true,
			pred: &ml.Prediction{Prediction: ml.LabelReal, Confidence: 97, RealProb: 0.97, FakeProb: 0.03},
			wantLabel: LabelFabricated, wantFlags: 2, wantConfidence: 67,
		},
		{
			name: "single flag with confident real score stays suspicious",
			meta: true,
			pred: &ml.Prediction{Prediction: ml.LabelReal, Confidence: 90, RealProb: 0.9, FakeProb: 0.1},
			wantLabel: LabelSuspicious, wantFlags: 1, wantConfidence: 75,
		},
		{
			name: "no flags but low ML confidence is suspicious",
			pred: &ml.Prediction{Prediction: ml.LabelReal, Confidence: 60, RealProb: 0.6, FakeProb: 0.4},
			wantLabel: LabelSuspicious, wantFlags: 0, wantConfidence: 60,
		},
		{
			name: "all three flags floor the confidence at zero",
			ela:  true, meta: true, noi: true,
			pred: &ml.Prediction{Prediction: ml.LabelFake, Confidence: 40, RealProb: 0.6, FakeProb: 0.4},
			wantLabel: LabelFabricated, wantFlags: 3, wantConfidence: 0,
		},
		{
			name:      "ML unavailable can never be authentic",
			pred:      nil,
			wantLabel: LabelSuspicious, wantFlags: 0, wantConfidence: 0,
		},
		{
			name: "ML unavailable with forensic majority is fabricated",
			ela:  true, meta: true,
			pred:      nil,
			wantLabel: LabelFabricated, wantFlags: 2, wantConfidence: 0,
		},
	}

	rules := defaultRules()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := rules.Decide(
				models.ELAResult{Suspicious: tt.ela},
				models.MetadataResult{Suspicious: tt.meta},
				models.NoiseResult{Suspicious: tt.noi},
				tt.pred,
			)
			assert.Equal(t, tt.wantLabel, verdict.Label)
			assert.Equal(t, tt.wantFlags, verdict.FlagCount)
			assert.InDelta(t, tt.wantConfidence, verdict.Confidence, 1e-9)
		})
	}
}

func TestDecideFlagCountMatchesSuspiciousFindings(t *testing.T) {
	rules := defaultRules()
	pred := &ml.Prediction{Confidence: 80, RealProb: 0.8, FakeProb: 0.2}

	for _, suspicious := range []bool{false, true} {
		ela, meta, noise := finding(suspicious)
		verdict := rules.Decide(ela, meta, noise, pred)
		want := 0
		if suspicious {
			want = 3
		}
		assert.Equal(t, want, verdict.FlagCount)
	}
}
