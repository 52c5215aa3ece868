package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/collectiq/internal/config"
	"github.com/collectiq/collectiq/internal/llm"
	"github.com/collectiq/collectiq/internal/models"
)

type fakeModel struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeModel) Generate(ctx context.Context, req llm.Request) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (f *fakeModel) Close() error { return nil }

func testEnv() *models.FeatureEnvelope {
	return &models.FeatureEnvelope{
		OCRBlocks: []models.OCRBlock{
			{Text: "Charizard", Confidence: 0.95, Type: models.BlockLine,
				BoundingBox: models.BoundingBox{Top: 0.05, Left: 0.1, Width: 0.4, Height: 0.06}},
			{Text: "HP 120", Confidence: 0.9, Type: models.BlockLine,
				BoundingBox: models.BoundingBox{Top: 0.06, Left: 0.6, Width: 0.2, Height: 0.04}},
			{Text: "Flip a coin. If heads, discard 2 Energy cards", Confidence: 0.85, Type: models.BlockLine,
				BoundingBox: models.BoundingBox{Top: 0.5, Left: 0.1, Width: 0.7, Height: 0.05}},
			{Text: "Illus. Mitsuhiro Arita 4/102", Confidence: 0.8, Type: models.BlockLine,
				BoundingBox: models.BoundingBox{Top: 0.93, Left: 0.1, Width: 0.4, Height: 0.03}},
		},
		HolographicVariance: 0.62,
		Border:              models.BorderMetrics{SymmetryScore: 0.91},
		Quality:             models.ImageQuality{BlurScore: 0.8},
	}
}

const validResponse = `{
  "name": {"value": "Charizard", "confidence": 0.95, "rationale": "top block exact match"},
  "set": {"value": "Base Set", "confidence": 0.85, "rationale": "collector number 4/102"},
  "rarity": {"value": "Holo Rare", "confidence": 0.8, "rationale": "holo variance high"},
  "collectorNumber": {"value": "4/102", "confidence": 0.9, "rationale": "bottom block"},
  "illustrator": {"value": "Mitsuhiro Arita", "confidence": 0.9, "rationale": "illus credit"},
  "condition": {"value": null, "confidence": 0.2, "rationale": "cannot judge from single photo"},
  "overallConfidence": 0.87,
  "reasoningTrail": ["grouped blocks", "matched set by number"]
}`

func fastConfig() config.ModelCallConfig {
	return config.ModelCallConfig{Temperature: 0.15, MaxTokens: 2048, MaxRetries: 3}
}

func TestInterpretHappyPath(t *testing.T) {
	model := &fakeModel{responses: []string{validResponse}}
	meta := New(model, fastConfig()).Interpret(context.Background(), testEnv())

	require.NotNil(t, meta.Name.Value)
	assert.Equal(t, "Charizard", *meta.Name.Value)
	assert.True(t, meta.VerifiedByAI)
	assert.InDelta(t, 0.87, meta.OverallConfidence, 1e-9)
	require.NotNil(t, meta.Set.Value)
	assert.Equal(t, "Base Set", *meta.Set.Value)
}

func TestInterpretAcceptsFencedJSON(t *testing.T) {
	model := &fakeModel{responses: []string{"```json\n" + validResponse + "\n```"}}
	meta := New(model, fastConfig()).Interpret(context.Background(), testEnv())
	assert.True(t, meta.VerifiedByAI)
}

func TestInterpretSchemaViolationFallsBackWithoutRetry(t *testing.T) {
	// Confidence out of range: rejected, not retried.
	bad := `{"name": {"value": "X", "confidence": 1.4, "rationale": "r"},
		"set": {"value": null, "confidence": 0, "rationale": "r"},
		"rarity": {"value": null, "confidence": 0, "rationale": "r"},
		"collectorNumber": {"value": null, "confidence": 0, "rationale": "r"},
		"illustrator": {"value": null, "confidence": 0, "rationale": "r"},
		"condition": {"value": null, "confidence": 0, "rationale": "r"},
		"overallConfidence": 0.5, "reasoningTrail": []}`
	model := &fakeModel{responses: []string{bad, validResponse}}
	meta := New(model, fastConfig()).Interpret(context.Background(), testEnv())

	assert.Equal(t, 1, model.calls)
	assert.False(t, meta.VerifiedByAI)
	require.NotNil(t, meta.Name.Value)
	assert.Equal(t, "Charizard", *meta.Name.Value) // topmost block
	assert.InDelta(t, 0.95*0.7, meta.Name.Confidence, 1e-9)
	assert.InDelta(t, 0.95*0.7*0.5, meta.OverallConfidence, 1e-9)
	assert.Equal(t, fallbackRationale, meta.Set.Rationale)
	assert.Nil(t, meta.Rarity.Value)
}

func TestInterpretFallbackOnExhaustedTransients(t *testing.T) {
	transient := &llm.Error{Category: "server_error", Retryable: true, Err: errors.New("503")}
	model := &fakeModel{errs: []error{transient, transient, transient}}
	r := New(model, fastConfig())
	r.retry.Base = 0 // keep the test fast
	meta := r.Interpret(context.Background(), testEnv())

	assert.Equal(t, 3, model.calls)
	assert.False(t, meta.VerifiedByAI)
	require.NotNil(t, meta.Name.Value)
	assert.Equal(t, "Charizard", *meta.Name.Value)
}

func TestNameGuardReplacesAbilityText(t *testing.T) {
	resp := `{
  "name": {"value": "Flip a coin. If heads, discard", "confidence": 0.6, "rationale": "r"},
  "set": {"value": null, "confidence": 0, "rationale": "r"},
  "rarity": {"value": null, "confidence": 0, "rationale": "r"},
  "collectorNumber": {"value": null, "confidence": 0, "rationale": "r"},
  "illustrator": {"value": null, "confidence": 0, "rationale": "r"},
  "condition": {"value": null, "confidence": 0, "rationale": "r"},
  "overallConfidence": 0.4, "reasoningTrail": []}`
	model := &fakeModel{responses: []string{resp}}
	meta := New(model, fastConfig()).Interpret(context.Background(), testEnv())

	require.NotNil(t, meta.Name.Value)
	assert.Equal(t, "Charizard", *meta.Name.Value)
	assert.True(t, meta.VerifiedByAI) // the guard edits the name, not the verification flag
}

func TestGroupByRegion(t *testing.T) {
	g := groupByRegion(testEnv().OCRBlocks)
	assert.Len(t, g.Top, 2)
	assert.Len(t, g.Middle, 1)
	assert.Len(t, g.Bottom, 1)
}

func TestPromptIsDeterministic(t *testing.T) {
	env1, env2 := testEnv(), testEnv()
	sortByPosition(env1.OCRBlocks)
	sortByPosition(env2.OCRBlocks)
	assert.Equal(t, buildPrompt(env1), buildPrompt(env2))
	assert.Contains(t, buildPrompt(env1), "Confidence scale")
}

func TestPlausibleName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple", "Charizard", true},
		{"two_words", "Dark Charizard", true},
		{"ability_keyword", "Flip a coin", false},
		{"too_long", "This is a very long string that exceeds limits", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plausibleName(tt.in))
		})
	}
}
