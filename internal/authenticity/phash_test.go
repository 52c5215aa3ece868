package authenticity

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage renders a smooth scene from normalized coordinates so the
// same pattern appears at any resolution.
func gradientImage(w, h int, seed uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w)
			fy := float64(y) / float64(h)
			v := uint8(128 + 60*math.Sin(4*math.Pi*fx)*math.Cos(3*math.Pi*fy) + float64(seed)/5)
			img.Set(x, y, color.RGBA{v, v / 2, 255 - v, 255})
		}
	}
	return img
}

func TestPerceptualHashDeterministic(t *testing.T) {
	img := gradientImage(200, 280, 0)
	a := PerceptualHash(img)
	b := PerceptualHash(img)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

// cardScene renders a card-like frame from normalized coordinates: an
// asymmetric border, a title band, a text box, and an art blob, over
// gentle brightness ramps. Pixel-center sampling keeps the scene aligned
// across resolutions.
func cardScene(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := (float64(x) + 0.5) / float64(w)
			fy := (float64(y) + 0.5) / float64(h)
			v := 190 + 30*fx + 20*fy
			switch {
			case fx < 0.10 || fx > 0.95 || fy < 0.06 || fy > 0.92:
				v = 40 + 25*fx
			default:
				if fy > 0.08 && fy < 0.18 && fx < 0.62 {
					v = 90
				}
				if fy > 0.56 && fy < 0.82 && fx > 0.16 {
					v = 150 + 20*fx
				}
				dx, dy := fx-0.62, fy-0.30
				if dx*dx+dy*dy < 0.025 {
					v = 70
				}
			}
			c := uint8(math.Min(math.Max(v, 0), 255))
			img.Set(x, y, color.RGBA{c, c, c, 255})
		}
	}
	return img
}

func TestPerceptualHashStableUnderResize(t *testing.T) {
	// The same scene rendered at different resolutions should land close
	// in Hamming space.
	big := cardScene(400, 560)
	small := cardScene(100, 140)

	dist, err := HammingDistance(PerceptualHash(big), PerceptualHash(small))
	require.NoError(t, err)
	assert.LessOrEqual(t, dist, 12)
}

func TestPerceptualHashStableUnderDownscale(t *testing.T) {
	// A downscaled copy of the same photo must hash near the original.
	img := cardScene(400, 560)
	shrunk := imaging.Resize(img, 100, 140, imaging.Lanczos)

	dist, err := HammingDistance(PerceptualHash(img), PerceptualHash(shrunk))
	require.NoError(t, err)
	assert.LessOrEqual(t, dist, 12)
}

func TestPerceptualHashSeparatesDifferentImages(t *testing.T) {
	a := PerceptualHash(gradientImage(200, 280, 0))

	// A structurally different image: vertical bars instead of a gradient.
	img := image.NewRGBA(image.Rect(0, 0, 200, 280))
	for y := 0; y < 280; y++ {
		for x := 0; x < 200; x++ {
			v := uint8(0)
			if (x/10)%2 == 0 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	b := PerceptualHash(img)

	dist, err := HammingDistance(a, b)
	require.NoError(t, err)
	assert.Greater(t, dist, 10)
}

func TestHammingDistance(t *testing.T) {
	dist, err := HammingDistance("0000000000000000", "0000000000000000")
	require.NoError(t, err)
	assert.Zero(t, dist)

	dist, err = HammingDistance("0000000000000000", "ffffffffffffffff")
	require.NoError(t, err)
	assert.Equal(t, 64, dist)

	dist, err = HammingDistance("0000000000000001", "0000000000000003")
	require.NoError(t, err)
	assert.Equal(t, 1, dist)
}

func TestHammingDistanceSymmetric(t *testing.T) {
	a, b := "deadbeefcafe1234", "1234cafedeadbeef"
	d1, err := HammingDistance(a, b)
	require.NoError(t, err)
	d2, err := HammingDistance(b, a)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestHammingDistanceRejectsMalformed(t *testing.T) {
	_, err := HammingDistance("not-hex", "0000000000000000")
	assert.Error(t, err)
}

func TestHashSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, HashSimilarity(0), 1e-9)
	assert.InDelta(t, 0.5, HashSimilarity(32), 1e-9)
	assert.InDelta(t, 0.0, HashSimilarity(64), 1e-9)
}
