package ocr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/collectiq/collectiq/internal/models"
)

// Spatial bands of a portrait trading card. The top band carries the name
// and HP, the middle abilities and flavor text, the bottom the copyright
// line, collector number, and illustrator credit.
const (
	topBandMax    = 0.30
	bottomBandMin = 0.70
)

type regionGroups struct {
	Top    []models.OCRBlock
	Middle []models.OCRBlock
	Bottom []models.OCRBlock
}

// groupByRegion partitions OCR blocks by vertical position.
func groupByRegion(blocks []models.OCRBlock) regionGroups {
	var g regionGroups
	for _, b := range blocks {
		switch {
		case b.BoundingBox.Top < topBandMax:
			g.Top = append(g.Top, b)
		case b.BoundingBox.Top < bottomBandMin:
			g.Middle = append(g.Middle, b)
		default:
			g.Bottom = append(g.Bottom, b)
		}
	}
	return g
}

// buildPrompt constructs the deterministic interpretation prompt: task and
// schema, OCR blocks by region, visual context, and the closed confidence
// scale.
func buildPrompt(env *models.FeatureEnvelope) string {
	g := groupByRegion(env.OCRBlocks)

	var sb strings.Builder
	sb.WriteString("You are a trading card identification expert. Interpret the OCR text ")
	sb.WriteString("below into structured card metadata.\n\n")
	sb.WriteString("Respond with ONLY a JSON object matching this schema:\n")
	sb.WriteString(`{
  "name": {"value": string|null, "confidence": number, "rationale": string},
  "set": {"value": string|null, "confidence": number, "candidates": [{"value": string, "confidence": number}], "rationale": string},
  "rarity": {"value": string|null, "confidence": number, "rationale": string},
  "collectorNumber": {"value": string|null, "confidence": number, "rationale": string},
  "illustrator": {"value": string|null, "confidence": number, "rationale": string},
  "condition": {"value": string|null, "confidence": number, "rationale": string},
  "overallConfidence": number,
  "reasoningTrail": [string]
}` + "\n\n")

	writeRegion := func(name string, blocks []models.OCRBlock) {
		sb.WriteString(fmt.Sprintf("%s region (%d blocks):\n", name, len(blocks)))
		for _, b := range blocks {
			sb.WriteString(fmt.Sprintf("  - %q (ocr confidence %.2f, top %.2f, left %.2f)\n",
				b.Text, b.Confidence, b.BoundingBox.Top, b.BoundingBox.Left))
		}
		sb.WriteString("\n")
	}
	writeRegion("TOP", g.Top)
	writeRegion("MIDDLE", g.Middle)
	writeRegion("BOTTOM", g.Bottom)

	sb.WriteString("Visual context:\n")
	sb.WriteString(fmt.Sprintf("  holographic variance: %.3f\n", env.HolographicVariance))
	sb.WriteString(fmt.Sprintf("  border symmetry: %.3f\n", env.Border.SymmetryScore))
	sb.WriteString(fmt.Sprintf("  blur score: %.3f\n", env.Quality.BlurScore))
	sb.WriteString(fmt.Sprintf("  glare detected: %v\n\n", env.Quality.GlareDetected))

	sb.WriteString("Confidence scale (closed):\n")
	sb.WriteString("  0.9-1.0 exact, high-confidence match\n")
	sb.WriteString("  0.7-0.9 strong fuzzy match\n")
	sb.WriteString("  0.5-0.7 moderate match\n")
	sb.WriteString("  0.3-0.5 low-confidence guess\n")
	sb.WriteString("  0.0-0.3 uncertain or unknown\n")
	return sb.String()
}

// sortByPosition orders blocks top-to-bottom then left-to-right. Used only
// to keep prompts deterministic for identical envelopes.
func sortByPosition(blocks []models.OCRBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].BoundingBox.Top != blocks[j].BoundingBox.Top {
			return blocks[i].BoundingBox.Top < blocks[j].BoundingBox.Top
		}
		return blocks[i].BoundingBox.Left < blocks[j].BoundingBox.Left
	})
}
