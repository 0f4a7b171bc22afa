package forensics

import (
	"image-authenticity-service/internal/imaging"
	"image-authenticity-service/internal/models"
)

// noiseMethod identifies the residual filter so implementations can be
// swapped without breaking the output contract.
const noiseMethod = "highpass-3x3"

// NoiseDetector isolates the sensor-noise residual with a 3x3 box high-pass
// filter and checks its variance against the natural-capture band. Variance
// below the band means the image is unnaturally smooth (typical for
// generated content); far above it means synthetic or re-injected noise.
type NoiseDetector struct {
	VarianceMin float64
	VarianceMax float64
}

// Run produces the noise finding with the same error-isolation contract as
// the other detectors.
func (d NoiseDetector) Run(raw *imaging.RawImage) models.NoiseResult {
	result := models.NoiseResult{Method: noiseMethod}

	if raw == nil || raw.Pixels == nil {
		result.Error = "no pixel data to filter"
		return result
	}
	if raw.Width < 3 || raw.Height < 3 {
		result.Error = "image too small for 3x3 residual filter"
		return result
	}

	gray := luminance(raw)
	w, h := raw.Width, raw.Height

	// Residual = pixel minus its 3x3 neighborhood mean; borders skipped.
	var sum, sumSq, sumAbs float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var neighborhood float64
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					neighborhood += gray[(y+dy)*w+(x+dx)]
				}
			}
			r := gray[y*w+x] - neighborhood/9.0
			sum += r
			sumSq += r * r
			if r < 0 {
				sumAbs -= r
			} else {
				sumAbs += r
			}
			n++
		}
	}
	if n == 0 {
		result.Error = "empty residual"
		return result
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	result.Variance = round3(variance)
	result.MeanAbs = round3(sumAbs / float64(n))
	result.Suspicious = variance < d.VarianceMin || variance > d.VarianceMax
	return result
}

// luminance flattens the pixel grid to ITU-R 601 luma values in [0, 255]
func luminance(raw *imaging.RawImage) []float64 {
	bounds := raw.Pixels.Bounds()
	out := make([]float64, raw.Width*raw.Height)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := raw.Pixels.At(x, y).RGBA()
			out[i] = (0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8))
			i++
		}
	}
	return out
}
