package authenticity

import (
	"math"
	"strings"

	"github.com/collectiq/collectiq/internal/models"
)

// Print-layout text every genuine card carries somewhere on its face.
var expectedPatterns = []string{
	"HP", "©", "Pokémon", "Nintendo", "Creatures", "GAME FREAK",
	"Illus.", "Weakness", "Resistance", "Retreat",
}

// textMatchSignal blends how many expected print patterns appear in the
// OCR text (70%) with the mean OCR confidence (30%). The card's own name,
// when known, joins the pattern set.
func textMatchSignal(blocks []models.OCRBlock, cardName string) float64 {
	patterns := expectedPatterns
	if cardName != "" {
		patterns = append(append([]string{}, expectedPatterns...), cardName)
	}

	var corpus strings.Builder
	var confSum float64
	for _, b := range blocks {
		corpus.WriteString(b.Text)
		corpus.WriteString("\n")
		confSum += b.Confidence
	}
	if len(blocks) == 0 {
		return 0
	}

	haystack := strings.ToLower(corpus.String())
	matched := 0
	for _, p := range patterns {
		if strings.Contains(haystack, strings.ToLower(p)) {
			matched++
		}
	}

	matchRatio := float64(matched) / float64(len(patterns))
	avgConf := confSum / float64(len(blocks))
	return 0.7*matchRatio + 0.3*avgConf
}

// holoSignal scores the holographic variance against what the card's
// rarity predicts. Genuine holos sit in a mid-band around 0.6; genuine
// non-holos are flat.
func holoSignal(variance float64, holoExpected bool) float64 {
	if !holoExpected {
		switch {
		case variance < 0.2:
			return 1.0
		case variance <= 0.4:
			return 0.7
		default:
			return 0.3
		}
	}
	switch {
	case variance >= 0.3 && variance <= 0.9:
		return math.Max(0.5, 1-math.Abs(variance-0.6)/0.3)
	case variance < 0.3:
		return 0.3 + (variance/0.3)*0.2
	default:
		return math.Max(0.2, 0.5-(variance-0.9))
	}
}

const (
	expectedBorderRatio  = 0.15
	borderRatioTolerance = 0.10
)

// borderSignal blends border symmetry (40%), the consistency of the four
// side ratios (30%), and their closeness to the expected print ratio (30%).
func borderSignal(border models.BorderMetrics) float64 {
	ratios := border.SideRatios()

	varConf := math.Max(0, 1-10*variance(ratios))

	var sum float64
	for _, r := range ratios {
		sum += r
	}
	avg := sum / float64(len(ratios))
	ratioConf := math.Max(0, 1-math.Abs(avg-expectedBorderRatio)/borderRatioTolerance)

	return 0.4*border.SymmetryScore + 0.3*varConf + 0.3*ratioConf
}

// fontSignal blends text alignment (40%), kerning consistency (30%), and
// font-size consistency (30%). Counterfeits drift on all three.
func fontSignal(font models.FontMetrics) float64 {
	kerningConf := math.Max(0, 1-variance(font.KerningSamples)/0.05)
	sizeConf := math.Max(0, 1-font.FontSizeVariance/50)
	return 0.4*font.AlignmentScore + 0.3*kerningConf + 0.3*sizeConf
}

// holoExpected reports whether the rarity implies a holographic treatment.
func holoExpected(rarity string) bool {
	r := strings.ToLower(rarity)
	for _, kw := range []string{"holo", "ultra rare", "secret rare", "rainbow rare", "full art", "vmax", "vstar", "ex", "gx"} {
		if strings.Contains(r, kw) {
			return true
		}
	}
	return false
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
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
	return sq / float64(len(values))
}
