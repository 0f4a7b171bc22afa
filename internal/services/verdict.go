package services

import (
	"image-authenticity-service/internal/ml"
	"image-authenticity-service/internal/models"
)

// Verdict labels surfaced in the forensic_verdict field
const (
	LabelAuthentic  = "authentic"
	LabelSuspicious = "suspicious"
	LabelFabricated = "fabricated"
)

// Verdict is the fused decision over all detector findings
type Verdict struct {
	Label      string
	Confidence float64 // 0-100
	FlagCount  int
}

// VerdictRules holds the fusion thresholds. The decision is a fixed
// sequence of named rules rather than a weighted sum so that every label
// maps to a human-explainable forensic argument.
type VerdictRules struct {
	// FakeProbThreshold is the ML fake probability treated as
	// high-confidence when corroborated by at least one forensic flag.
	FakeProbThreshold float64
	// LowConfidence is the percent confidence below which a result
	// cannot be called authentic.
	LowConfidence float64
	// FlagPenalty is the percent confidence subtracted per forensic
	// flag, floored at zero.
	FlagPenalty float64
}

// Decide is a pure function over the four findings. A nil prediction means
// the ML stage was unavailable; the forensic rules still run, with unknown
// ML treated as zero confidence so the result can never be authentic.
func (r VerdictRules) Decide(ela models.ELAResult, meta models.MetadataResult, noise models.NoiseResult, pred *ml.Prediction) Verdict {
	flagCount := 0
	for _, suspicious := range []bool{ela.Suspicious, meta.Suspicious, noise.Suspicious} {
		if suspicious {
			flagCount++
		}
	}

	var fakeProb, mlConfidence float64
	if pred != nil {
		fakeProb = pred.FakeProb
		mlConfidence = pred.Confidence
	}

	var label string
	switch {
	// Rule 1: confident ML fake corroborated by any forensic signal.
	case fakeProb >= r.FakeProbThreshold && flagCount >= 1:
		label = LabelFabricated
	// Rule 2: majority of the three forensic checks triggered.
	case flagCount >= 2:
		label = LabelFabricated
	// Rule 3: a single forensic flag, or an ML score too weak to trust.
	case flagCount == 1 || mlConfidence < r.LowConfidence:
		label = LabelSuspicious
	default:
		label = LabelAuthentic
	}

	// Forensic disagreement erodes trust in the ML score even when the
	// score itself is confident.
	confidence := mlConfidence - r.FlagPenalty*float64(flagCount)
	if confidence < 0 {
		confidence = 0
	}

	return Verdict{
		Label:      label,
		Confidence: confidence,
		FlagCount:  flagCount,
	}
}
