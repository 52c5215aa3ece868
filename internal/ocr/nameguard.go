package ocr

import (
	"strings"

	"github.com/collectiq/collectiq/internal/models"
)

// Ability-text keywords that disqualify a block from being the card name.
var abilityKeywords = []string{
	"flip", "coin", "heads", "tails", "damage", "attack", "energy",
	"deck", "discard", "draw", "search", "your", "opponent",
}

const (
	guardMaxTop     = 0.40
	guardMaxWords   = 4
	guardMaxLength  = 30
)

// plausibleName reports whether a model-returned name looks like a card
// name at all. The guard only fires when this fails; the model output is
// otherwise authoritative.
func plausibleName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > guardMaxLength {
		return false
	}
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > guardMaxWords {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range abilityKeywords {
		for _, w := range strings.Fields(lower) {
			if w == kw {
				return false
			}
		}
	}
	return true
}

// guessNameFromBlocks picks the best name candidate from the OCR blocks:
// high on the card, 1-4 words, short, free of ability text. Preference
// order is position, then block size, then OCR confidence.
func guessNameFromBlocks(blocks []models.OCRBlock) *models.OCRBlock {
	var best *models.OCRBlock
	var bestScore float64
	for i := range blocks {
		b := &blocks[i]
		if b.BoundingBox.Top >= guardMaxTop {
			continue
		}
		if !plausibleName(b.Text) {
			continue
		}
		score := (1.0-b.BoundingBox.Top)*2.0 + b.BoundingBox.Height*10.0 + b.Confidence
		if best == nil || score > bestScore {
			best = b
			bestScore = score
		}
	}
	return best
}
