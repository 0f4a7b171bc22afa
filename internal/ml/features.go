package ml

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// FeatureDim is the length of the shared feature vector. Weight artifacts
// must match it exactly.
const FeatureDim = 16

// inferSize is the edge length every image is rescaled to before feature
// extraction. Changing it invalidates all trained weight artifacts.
const inferSize = 224

// ExtractFeatures rescales the image to the inference size and computes the
// fixed feature vector shared by all ensemble members. All features are
// normalized to roughly [0, 1].
func ExtractFeatures(img image.Image) []float64 {
	scaled := image.NewRGBA(image.Rect(0, 0, inferSize, inferSize))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	n := inferSize * inferSize
	r := make([]float64, n)
	g := make([]float64, n)
	b := make([]float64, n)
	luma := make([]float64, n)
	for y := 0; y < inferSize; y++ {
		for x := 0; x < inferSize; x++ {
			i := y*inferSize + x
			o := scaled.PixOffset(x, y)
			r[i] = float64(scaled.Pix[o])
			g[i] = float64(scaled.Pix[o+1])
			b[i] = float64(scaled.Pix[o+2])
			luma[i] = 0.299*r[i] + 0.587*g[i] + 0.114*b[i]
		}
	}

	rMean, rStd := meanStd(r)
	gMean, gStd := meanStd(g)
	bMean, bStd := meanStd(b)
	_, lStd := meanStd(luma)

	features := make([]float64, FeatureDim)
	features[0] = rMean / 255
	features[1] = gMean / 255
	features[2] = bMean / 255
	features[3] = rStd / 128
	features[4] = gStd / 128
	features[5] = bStd / 128
	features[6] = entropy(luma) / 8
	features[7] = gradientEnergy(luma) / 255
	features[8] = lStd / 128
	features[9] = saturation(r, g, b)
	features[10] = fractionBelow(luma, 32)
	features[11] = fractionAbove(luma, 224)
	features[12] = colorDiversity(scaled)
	features[13] = horizontalSymmetry(luma)
	features[14] = localVariance(luma)
	features[15] = 1 // bias-like constant term kept in the vector

	return features
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// entropy of the 256-bin luma histogram, in bits
func entropy(luma []float64) float64 {
	var hist [256]int
	for _, v := range luma {
		idx := int(v)
		if idx > 255 {
			idx = 255
		}
		hist[idx]++
	}
	total := float64(len(luma))
	var h float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		h -= p * math.Log2(p)
	}
	return h
}

// gradientEnergy is the mean absolute horizontal+vertical luma gradient
func gradientEnergy(luma []float64) float64 {
	var sum float64
	n := 0
	for y := 0; y < inferSize-1; y++ {
		for x := 0; x < inferSize-1; x++ {
			i := y*inferSize + x
			sum += math.Abs(luma[i+1]-luma[i]) + math.Abs(luma[i+inferSize]-luma[i])
			n += 2
		}
	}
	return sum / float64(n)
}

func saturation(r, g, b []float64) float64 {
	var sum float64
	for i := range r {
		max := math.Max(r[i], math.Max(g[i], b[i]))
		min := math.Min(r[i], math.Min(g[i], b[i]))
		if max > 0 {
			sum += (max - min) / max
		}
	}
	return sum / float64(len(r))
}

func fractionBelow(values []float64, threshold float64) float64 {
	count := 0
	for _, v := range values {
		if v < threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func fractionAbove(values []float64, threshold float64) float64 {
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// colorDiversity is the fraction of occupied buckets in a 4096-bucket
// quantized RGB histogram; generated imagery tends to occupy fewer.
func colorDiversity(img *image.RGBA) float64 {
	seen := make(map[uint16]struct{})
	for y := 0; y < inferSize; y++ {
		for x := 0; x < inferSize; x++ {
			o := img.PixOffset(x, y)
			key := uint16(img.Pix[o]>>4)<<8 | uint16(img.Pix[o+1]>>4)<<4 | uint16(img.Pix[o+2]>>4)
			seen[key] = struct{}{}
		}
	}
	return float64(len(seen)) / 4096
}

// horizontalSymmetry compares the left half against the mirrored right half
func horizontalSymmetry(luma []float64) float64 {
	var sum float64
	n := 0
	for y := 0; y < inferSize; y++ {
		for x := 0; x < inferSize/2; x++ {
			left := luma[y*inferSize+x]
			right := luma[y*inferSize+(inferSize-1-x)]
			sum += math.Abs(left - right)
			n++
		}
	}
	// 0 difference = perfect symmetry = 1.0
	return 1 - (sum/float64(n))/255
}

// localVariance is the mean variance over 16x16 tiles, scaled to [0, 1]
func localVariance(luma []float64) float64 {
	const tile = 16
	var sum float64
	tiles := 0
	for ty := 0; ty < inferSize; ty += tile {
		for tx := 0; tx < inferSize; tx += tile {
			var s, sq float64
			for y := ty; y < ty+tile; y++ {
				for x := tx; x < tx+tile; x++ {
					v := luma[y*inferSize+x]
					s += v
					sq += v * v
				}
			}
			count := float64(tile * tile)
			mean := s / count
			sum += sq/count - mean*mean
			tiles++
		}
	}
	return math.Min(1, (sum/float64(tiles))/(128*128))
}
