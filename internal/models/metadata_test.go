package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFieldUnmarshal(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		wantValue      *string
		wantConfidence float64
		wantCandidates int
	}{
		{
			name:           "single_field_shape",
			input:          `{"value":"Base Set","confidence":0.92,"rationale":"copyright line match"}`,
			wantValue:      strPtr("Base Set"),
			wantConfidence: 0.92,
		},
		{
			name:           "multi_candidate_shape",
			input:          `{"value":null,"candidates":[{"value":"Jungle","confidence":0.55},{"value":"Fossil","confidence":0.35}],"rationale":"ambiguous symbol"}`,
			wantValue:      nil,
			wantConfidence: 0.55,
			wantCandidates: 2,
		},
		{
			name:           "multi_candidate_with_primary",
			input:          `{"value":"Jungle","confidence":0.6,"candidates":[{"value":"Jungle","confidence":0.6}],"rationale":"symbol"}`,
			wantValue:      strPtr("Jungle"),
			wantConfidence: 0.6,
			wantCandidates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sf SetField
			require.NoError(t, json.Unmarshal([]byte(tt.input), &sf))
			if tt.wantValue == nil {
				assert.Nil(t, sf.Value)
			} else {
				require.NotNil(t, sf.Value)
				assert.Equal(t, *tt.wantValue, *sf.Value)
			}
			assert.InDelta(t, tt.wantConfidence, sf.Confidence, 1e-9)
			assert.Len(t, sf.Candidates, tt.wantCandidates)
			assert.NotEmpty(t, sf.Rationale)
		})
	}
}

func TestSetFieldResolved(t *testing.T) {
	sf := SetField{Candidates: []SetCandidate{{Value: "Jungle", Confidence: 0.5}}}
	got := sf.Resolved()
	require.NotNil(t, got)
	assert.Equal(t, "Jungle", *got)

	sf.Value = strPtr("Base Set")
	got = sf.Resolved()
	require.NotNil(t, got)
	assert.Equal(t, "Base Set", *got)

	empty := SetField{}
	assert.Nil(t, empty.Resolved())
}

func TestTopmostBlock(t *testing.T) {
	env := FeatureEnvelope{OCRBlocks: []OCRBlock{
		{Text: "HP 120", BoundingBox: BoundingBox{Top: 0.08}},
		{Text: "Charizard", BoundingBox: BoundingBox{Top: 0.05}},
		{Text: "Illus. Mitsuhiro Arita", BoundingBox: BoundingBox{Top: 0.9}},
	}}
	top := env.TopmostBlock()
	require.NotNil(t, top)
	assert.Equal(t, "Charizard", top.Text)

	var empty FeatureEnvelope
	assert.Nil(t, empty.TopmostBlock())
}

func strPtr(s string) *string { return &s }
