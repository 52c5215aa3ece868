package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field is a single interpreted card attribute. Value is nil when the model
// could not determine the attribute; Rationale explains the decision either way.
type Field struct {
	Value      *string `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// SetCandidate is one alternative reading of the set name.
type SetCandidate struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// SetField is the set attribute. The model may return either the plain
// single-value shape or a multi-candidate shape; both decode into this type
// with Candidates empty for the single-value form.
type SetField struct {
	Value      *string        `json:"value"`
	Confidence float64        `json:"confidence"`
	Candidates []SetCandidate `json:"candidates,omitempty"`
	Rationale  string         `json:"rationale"`
}

// UnmarshalJSON accepts both the single-field and multi-candidate shapes.
func (s *SetField) UnmarshalJSON(data []byte) error {
	var raw struct {
		Value      *string        `json:"value"`
		Confidence *float64       `json:"confidence"`
		Candidates []SetCandidate `json:"candidates"`
		Rationale  string         `json:"rationale"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	s.Value = raw.Value
	s.Candidates = raw.Candidates
	s.Rationale = raw.Rationale
	if raw.Confidence != nil {
		s.Confidence = *raw.Confidence
	} else if len(raw.Candidates) > 0 {
		// Multi-candidate form may omit the top-level confidence.
		s.Confidence = raw.Candidates[0].Confidence
	}
	return nil
}

// Resolved returns the set value to use for identification: the primary
// value when present, else the first candidate.
func (s *SetField) Resolved() *string {
	if s.Value != nil {
		return s.Value
	}
	if len(s.Candidates) > 0 {
		v := s.Candidates[0].Value
		return &v
	}
	return nil
}

// CardMetadata is the OCR reasoner's structured interpretation of the raw
// OCR blocks. VerifiedByAI is true only when a model call succeeded and
// produced schema-valid output; downstream merges are conservative otherwise.
type CardMetadata struct {
	Name            Field     `json:"name"`
	Set             SetField  `json:"set"`
	Rarity          Field     `json:"rarity"`
	CollectorNumber Field     `json:"collectorNumber"`
	Illustrator     Field     `json:"illustrator"`
	Condition       Field     `json:"condition"`

	OverallConfidence float64   `json:"overallConfidence"`
	ReasoningTrail    []string  `json:"reasoningTrail"`
	VerifiedByAI      bool      `json:"verifiedByAi"`
	ExtractedAt       time.Time `json:"extractedAt"`
}
