package extractor

import (
	"image"

	"github.com/disintegration/imaging"
)

// cardRegion is a pixel-space crop of the localized card.
type cardRegion struct {
	Rect  image.Rectangle
	Found bool
}

// Aspect-ratio bounds for a plausible portrait trading card (width/height).
const (
	minCardAspect = 0.5
	maxCardAspect = 1.0
	cropPadding   = 0.05
	edgeThreshold = 60.0 // Sobel magnitude considered a strong edge
)

// locateCard finds the card's bounding box with a Sobel edge scan. The box
// is the extent of strong gradients, padded by 5%, and accepted only when
// its aspect ratio is plausible for a card. When localization fails the
// caller continues with the full image.
func locateCard(img image.Image) cardRegion {
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 8 || h < 8 {
		return cardRegion{}
	}

	lum := luminance(gray)

	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -lum[y-1][x-1] - 2*lum[y][x-1] - lum[y+1][x-1] +
				lum[y-1][x+1] + 2*lum[y][x+1] + lum[y+1][x+1]
			gy := -lum[y-1][x-1] - 2*lum[y-1][x] - lum[y-1][x+1] +
				lum[y+1][x-1] + 2*lum[y+1][x] + lum[y+1][x+1]
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy >= edgeThreshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX <= minX || maxY <= minY {
		return cardRegion{}
	}

	// Pad the detected box by 5% per side, clamped to the image.
	bw, bh := maxX-minX, maxY-minY
	padX, padY := int(float64(bw)*cropPadding), int(float64(bh)*cropPadding)
	rect := image.Rect(
		clamp(minX-padX, 0, w),
		clamp(minY-padY, 0, h),
		clamp(maxX+padX, 0, w),
		clamp(maxY+padY, 0, h),
	)

	aspect := float64(rect.Dx()) / float64(rect.Dy())
	if aspect < minCardAspect || aspect > maxCardAspect {
		return cardRegion{}
	}
	return cardRegion{Rect: rect, Found: true}
}

// luminance returns the grayscale intensity matrix of img.
func luminance(gray *image.NRGBA) [][]float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	lum := make([][]float64, h)
	for y := 0; y < h; y++ {
		lum[y] = make([]float64, w)
		for x := 0; x < w; x++ {
			i := gray.PixOffset(b.Min.X+x, b.Min.Y+y)
			lum[y][x] = float64(gray.Pix[i])
		}
	}
	return lum
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
