package authenticity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collectiq/collectiq/internal/models"
)

func TestHoloSignalNotExpected(t *testing.T) {
	tests := []struct {
		name     string
		variance float64
		want     float64
	}{
		{"flat surface", 0.1, 1.0},
		{"boundary low", 0.2, 0.7},
		{"mild shimmer", 0.35, 0.7},
		{"boundary high", 0.4, 0.7},
		{"strong shimmer on non-holo", 0.45, 0.3},
		{"extreme variance", 0.9, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, holoSignal(tt.variance, false), 1e-9)
		})
	}
}

func TestHoloSignalExpected(t *testing.T) {
	tests := []struct {
		name     string
		variance float64
		want     float64
	}{
		{"ideal holo band", 0.6, 1.0},
		{"band edge low", 0.3, 0.5},
		{"band edge high", 0.9, 0.5},
		{"mid band", 0.75, 0.5},
		{"too flat for holo", 0.15, 0.3 + 0.5*0.2},
		{"zero variance", 0.0, 0.3},
		{"oversaturated", 1.0, 0.4},
		{"way oversaturated", 1.3, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, holoSignal(tt.variance, true), 1e-9)
		})
	}
}

func TestHoloExpected(t *testing.T) {
	assert.True(t, holoExpected("Rare Holo"))
	assert.True(t, holoExpected("Ultra Rare"))
	assert.True(t, holoExpected("VMAX"))
	assert.False(t, holoExpected("Common"))
	assert.False(t, holoExpected("Uncommon"))
	assert.False(t, holoExpected(""))
}

func TestTextMatchSignal(t *testing.T) {
	blocks := []models.OCRBlock{
		{Text: "Charizard HP 120", Confidence: 0.9},
		{Text: "Weakness Resistance Retreat", Confidence: 0.8},
		{Text: "Illus. Mitsuhiro Arita ©2024 Pokémon / Nintendo / Creatures / GAME FREAK", Confidence: 0.7},
	}

	// All 10 base patterns plus the name appear; avg confidence 0.8.
	got := textMatchSignal(blocks, "Charizard")
	assert.InDelta(t, 0.7*1.0+0.3*0.8, got, 1e-9)
}

func TestTextMatchSignalPartial(t *testing.T) {
	blocks := []models.OCRBlock{
		{Text: "HP 60", Confidence: 0.5},
	}
	// 1 of 10 patterns, no name supplied.
	got := textMatchSignal(blocks, "")
	assert.InDelta(t, 0.7*0.1+0.3*0.5, got, 1e-9)
}

func TestTextMatchSignalNoBlocks(t *testing.T) {
	assert.Zero(t, textMatchSignal(nil, "Pikachu"))
}

func TestBorderSignalPerfectCard(t *testing.T) {
	border := models.BorderMetrics{
		TopRatio: 0.15, BottomRatio: 0.15, LeftRatio: 0.15, RightRatio: 0.15,
		SymmetryScore: 1.0,
	}
	assert.InDelta(t, 1.0, borderSignal(border), 1e-9)
}

func TestBorderSignalOffCenterPrint(t *testing.T) {
	border := models.BorderMetrics{
		TopRatio: 0.05, BottomRatio: 0.25, LeftRatio: 0.10, RightRatio: 0.20,
		SymmetryScore: 0.5,
	}
	got := borderSignal(border)
	// Average ratio still 0.15 but the spread kills the variance term.
	assert.Less(t, got, 0.8)
	assert.Greater(t, got, 0.0)
}

func TestFontSignalCleanPrint(t *testing.T) {
	font := models.FontMetrics{
		KerningSamples:   []float64{0.12, 0.12, 0.12},
		AlignmentScore:   1.0,
		FontSizeVariance: 0,
	}
	assert.InDelta(t, 1.0, fontSignal(font), 1e-9)
}

func TestFontSignalSloppyPrint(t *testing.T) {
	font := models.FontMetrics{
		KerningSamples:   []float64{0.05, 0.40, 0.10, 0.55},
		AlignmentScore:   0.4,
		FontSizeVariance: 80,
	}
	got := fontSignal(font)
	assert.Less(t, got, 0.5)
}
