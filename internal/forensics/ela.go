package forensics

import (
	"bytes"
	"image/jpeg"
	"math"

	"image-authenticity-service/internal/imaging"
	"image-authenticity-service/internal/models"
)

// ELADetector runs error level analysis: the image is re-encoded at a fixed
// JPEG quality and the per-pixel difference against the original is measured.
// Regions edited or generated at a different compression level than the rest
// of the image push the difference statistics up.
type ELADetector struct {
	// Quality is the JPEG re-encode setting; recorded in the finding so
	// results stay reproducible across deployments.
	Quality int
	// MeanThreshold is the mean-difference cutoff above which the image
	// is flagged.
	MeanThreshold float64
}

// Run produces the ELA finding. It never returns a Go error; internal
// failures are recorded in the finding with Suspicious left false.
func (d ELADetector) Run(raw *imaging.RawImage) models.ELAResult {
	result := models.ELAResult{Quality: d.Quality}

	if raw == nil || raw.Pixels == nil || raw.Width <= 0 || raw.Height <= 0 {
		result.Error = "no pixel data to re-encode"
		return result
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raw.Pixels, &jpeg.Options{Quality: d.Quality}); err != nil {
		result.Error = "re-encode failed: " + err.Error()
		return result
	}
	recompressed, err := jpeg.Decode(&buf)
	if err != nil {
		result.Error = "re-decode failed: " + err.Error()
		return result
	}

	bounds := raw.Pixels.Bounds()
	reBounds := recompressed.Bounds()
	var sum, sumSq, max float64
	n := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, _ := raw.Pixels.At(x, y).RGBA()
			r2, g2, b2, _ := recompressed.At(
				reBounds.Min.X+x-bounds.Min.X,
				reBounds.Min.Y+y-bounds.Min.Y,
			).RGBA()
			for _, diff := range []float64{
				absDiff(r1>>8, r2>>8),
				absDiff(g1>>8, g2>>8),
				absDiff(b1>>8, b2>>8),
			} {
				sum += diff
				sumSq += diff * diff
				if diff > max {
					max = diff
				}
				n++
			}
		}
	}
	if n == 0 {
		result.Error = "empty difference map"
		return result
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	result.Mean = round3(mean)
	result.Max = round3(max)
	result.Std = round3(math.Sqrt(variance))
	result.Suspicious = mean > d.MeanThreshold
	return result
}

func absDiff(a, b uint32) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
