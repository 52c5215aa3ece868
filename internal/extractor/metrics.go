package extractor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/collectiq/collectiq/internal/models"
)

// holographicVariance measures the mean spatial variation of pixel
// intensity across the card interior on an 8x8 cell grid, normalized to
// [0,1]. Holographic foil produces high local variance; matte cardstock is
// flat.
func holographicVariance(card image.Image) float64 {
	gray := imaging.Grayscale(card)
	lum := luminance(gray)
	h := len(lum)
	if h == 0 {
		return 0
	}
	w := len(lum[0])

	// Interior only: skip the outer 10% on each side so the border and
	// background do not dominate.
	x0, x1 := w/10, w-w/10
	y0, y1 := h/10, h-h/10
	if x1-x0 < 16 || y1-y0 < 16 {
		x0, y0, x1, y1 = 0, 0, w, h
	}

	const grid = 8
	cellW := (x1 - x0) / grid
	cellH := (y1 - y0) / grid
	if cellW == 0 || cellH == 0 {
		return 0
	}

	var total float64
	for gy := 0; gy < grid; gy++ {
		for gx := 0; gx < grid; gx++ {
			var sum, sumSq float64
			var n int
			for y := y0 + gy*cellH; y < y0+(gy+1)*cellH; y++ {
				for x := x0 + gx*cellW; x < x0+(gx+1)*cellW; x++ {
					v := lum[y][x]
					sum += v
					sumSq += v * v
					n++
				}
			}
			mean := sum / float64(n)
			total += sumSq/float64(n) - mean*mean
		}
	}
	meanVar := total / (grid * grid)

	// Normalize: cell variance of ~4000 (stddev ~63 of 255) is saturated foil.
	norm := meanVar / 4000.0
	return math.Min(1.0, norm)
}

// borderMetrics estimates the per-side border ratios and symmetry of the
// localized card. A border is the run of near-uniform intensity from each
// edge inward.
func borderMetrics(card image.Image) models.BorderMetrics {
	gray := imaging.Grayscale(card)
	lum := luminance(gray)
	h := len(lum)
	if h == 0 {
		return models.BorderMetrics{}
	}
	w := len(lum[0])

	rowMean := func(y int) float64 {
		var s float64
		for x := 0; x < w; x++ {
			s += lum[y][x]
		}
		return s / float64(w)
	}
	colMean := func(x int) float64 {
		var s float64
		for y := 0; y < h; y++ {
			s += lum[y][x]
		}
		return s / float64(h)
	}

	const deviation = 18.0 // intensity step that ends the border run
	depth := func(size int, mean func(int) float64, fromEnd bool) float64 {
		limit := size / 3
		idx := func(i int) int {
			if fromEnd {
				return size - 1 - i
			}
			return i
		}
		ref := mean(idx(0))
		d := limit
		for i := 1; i < limit; i++ {
			if math.Abs(mean(idx(i))-ref) > deviation {
				d = i
				break
			}
		}
		return float64(d) / float64(size)
	}

	m := models.BorderMetrics{
		TopRatio:    depth(h, rowMean, false),
		BottomRatio: depth(h, rowMean, true),
		LeftRatio:   depth(w, colMean, false),
		RightRatio:  depth(w, colMean, true),
	}

	// Symmetry: 1 minus the normalized asymmetry across opposing sides.
	vert := asymmetry(m.TopRatio, m.BottomRatio)
	horiz := asymmetry(m.LeftRatio, m.RightRatio)
	m.SymmetryScore = 1.0 - 0.5*(vert+horiz)
	return m
}

func asymmetry(a, b float64) float64 {
	sum := a + b
	if sum == 0 {
		return 0
	}
	return math.Abs(a-b) / sum
}

// fontMetrics derives kerning samples, an alignment score, and font-size
// variance from the OCR blocks. Only LINE blocks participate.
func fontMetrics(blocks []models.OCRBlock, imageHeight int) models.FontMetrics {
	var kerning []float64
	var lefts []float64
	var sizes []float64

	for _, b := range blocks {
		if b.Type != models.BlockLine {
			continue
		}
		chars := len([]rune(b.Text))
		if chars > 1 {
			kerning = append(kerning, b.BoundingBox.Width/float64(chars))
		}
		lefts = append(lefts, b.BoundingBox.Left)
		sizes = append(sizes, b.BoundingBox.Height*float64(imageHeight))
	}

	m := models.FontMetrics{
		KerningSamples:   kerning,
		FontSizeVariance: variance(sizes),
	}
	// Alignment: tight clustering of left edges scores high.
	if len(lefts) > 1 {
		m.AlignmentScore = math.Max(0, 1.0-math.Sqrt(variance(lefts))*4)
	} else if len(lefts) == 1 {
		m.AlignmentScore = 1.0
	}
	return m
}

// imageQuality computes blur, glare, and brightness on the card region.
func imageQuality(card image.Image) models.ImageQuality {
	gray := imaging.Grayscale(card)
	lum := luminance(gray)
	h := len(lum)
	if h < 3 {
		return models.ImageQuality{}
	}
	w := len(lum[0])

	var gradSum float64
	var gradN int
	var sum float64
	var overexposed int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lum[y][x]
			sum += v
			if v >= 250 {
				overexposed++
			}
			if y > 0 && y < h-1 && x > 0 && x < w-1 {
				gx := lum[y][x+1] - lum[y][x-1]
				gy := lum[y+1][x] - lum[y-1][x]
				gradSum += math.Abs(gx) + math.Abs(gy)
				gradN++
			}
		}
	}

	total := float64(w * h)
	q := models.ImageQuality{
		Brightness: sum / total / 255.0,
	}
	if gradN > 0 {
		// Mean gradient ~40 corresponds to a sharp capture.
		q.BlurScore = math.Min(1.0, gradSum/float64(gradN)/40.0)
	}
	q.GlareDetected = float64(overexposed)/total > 0.02
	return q
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(vals))
}
