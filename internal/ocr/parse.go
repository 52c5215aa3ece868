package ocr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/collectiq/collectiq/internal/llm"
	"github.com/collectiq/collectiq/internal/models"
)

// parseResponse validates a model response against the CardMetadata schema.
// Responses are untrusted: fenced markers are stripped, the payload is
// JSON-decoded, and any schema violation rejects the whole response. No
// repair of partially valid JSON is attempted.
func parseResponse(raw string) (*models.CardMetadata, error) {
	payload := llm.ExtractJSON(raw)

	var resp struct {
		Name              *models.Field    `json:"name"`
		Set               *models.SetField `json:"set"`
		Rarity            *models.Field    `json:"rarity"`
		CollectorNumber   *models.Field    `json:"collectorNumber"`
		Illustrator       *models.Field    `json:"illustrator"`
		Condition         *models.Field    `json:"condition"`
		OverallConfidence *float64         `json:"overallConfidence"`
		ReasoningTrail    []string         `json:"reasoningTrail"`
	}
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("schema violation: not valid JSON: %w", err)
	}

	for _, f := range []struct {
		name  string
		field *models.Field
	}{
		{"name", resp.Name},
		{"rarity", resp.Rarity},
		{"collectorNumber", resp.CollectorNumber},
		{"illustrator", resp.Illustrator},
		{"condition", resp.Condition},
	} {
		if f.field == nil {
			return nil, fmt.Errorf("schema violation: missing field %q", f.name)
		}
		if err := validateField(f.name, f.field.Confidence, f.field.Rationale); err != nil {
			return nil, err
		}
	}
	if resp.Set == nil {
		return nil, fmt.Errorf("schema violation: missing field \"set\"")
	}
	if err := validateField("set", resp.Set.Confidence, resp.Set.Rationale); err != nil {
		return nil, err
	}
	if resp.OverallConfidence == nil || *resp.OverallConfidence < 0 || *resp.OverallConfidence > 1 {
		return nil, fmt.Errorf("schema violation: overallConfidence out of [0,1]")
	}

	return &models.CardMetadata{
		Name:              *resp.Name,
		Set:               *resp.Set,
		Rarity:            *resp.Rarity,
		CollectorNumber:   *resp.CollectorNumber,
		Illustrator:       *resp.Illustrator,
		Condition:         *resp.Condition,
		OverallConfidence: *resp.OverallConfidence,
		ReasoningTrail:    resp.ReasoningTrail,
		VerifiedByAI:      true,
		ExtractedAt:       time.Now().UTC(),
	}, nil
}

func validateField(name string, confidence float64, rationale string) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("schema violation: %s confidence %.3f out of [0,1]", name, confidence)
	}
	if rationale == "" {
		return fmt.Errorf("schema violation: %s rationale is empty", name)
	}
	return nil
}
