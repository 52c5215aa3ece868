package authenticity

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strconv"

	"github.com/disintegration/imaging"
)

const (
	dctSize  = 32
	hashSize = 8
)

// PerceptualHash computes a 64-bit DCT hash of the image as 16 hex
// characters. The image is reduced to 32x32 grayscale, transformed with a
// 2D DCT, and the top-left 8x8 low-frequency block (minus the DC term) is
// thresholded against its median.
func PerceptualHash(img image.Image) string {
	small := imaging.Grayscale(imaging.Resize(img, dctSize, dctSize, imaging.Lanczos))

	pixels := make([][]float64, dctSize)
	for y := 0; y < dctSize; y++ {
		pixels[y] = make([]float64, dctSize)
		for x := 0; x < dctSize; x++ {
			r, _, _, _ := small.At(x, y).RGBA()
			pixels[y][x] = float64(r >> 8)
		}
	}

	coeffs := dct2d(pixels)

	// 63 low-frequency coefficients, skipping the DC term at (0,0).
	low := make([]float64, 0, hashSize*hashSize-1)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			low = append(low, coeffs[y][x])
		}
	}

	med := median(low)
	var bits uint64
	for i, c := range low {
		if c > med {
			bits |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("%016x", bits)
}

// HammingDistance counts differing bits between two hex hashes. Malformed
// input yields an error rather than a silent zero distance.
func HammingDistance(a, b string) (int, error) {
	av, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", a, err)
	}
	bv, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", b, err)
	}
	return popCount(av ^ bv), nil
}

// HashSimilarity maps Hamming distance onto [0,1], where 1 is identical.
func HashSimilarity(distance int) float64 {
	return 1 - float64(distance)/64
}

func popCount(v uint64) int {
	count := 0
	for v != 0 {
		v &= v - 1
		count++
	}
	return count
}

// dct2d is a direct 2D type-II DCT. Input is 32x32 so the O(n^4) cost is
// negligible.
func dct2d(pixels [][]float64) [][]float64 {
	n := len(pixels)
	out := make([][]float64, n)
	for u := 0; u < n; u++ {
		out[u] = make([]float64, n)
		for v := 0; v < n; v++ {
			var sum float64
			for y := 0; y < n; y++ {
				for x := 0; x < n; x++ {
					sum += pixels[y][x] *
						math.Cos((2*float64(y)+1)*float64(u)*math.Pi/(2*float64(n))) *
						math.Cos((2*float64(x)+1)*float64(v)*math.Pi/(2*float64(n)))
				}
			}
			cu, cv := 1.0, 1.0
			if u == 0 {
				cu = math.Sqrt2 / 2
			}
			if v == 0 {
				cv = math.Sqrt2 / 2
			}
			out[u][v] = sum * cu * cv * 2 / float64(n)
		}
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
