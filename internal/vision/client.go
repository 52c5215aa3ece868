// Package vision wraps the image-analysis services the feature extractor
// depends on: content moderation, object label detection, and OCR text
// detection. The production implementation talks to an HTTP sidecar; tests
// use the in-memory stub.
package vision

import (
	"context"

	"github.com/collectiq/collectiq/internal/models"
)

// ModerationLabel is one content-moderation finding.
type ModerationLabel struct {
	Name       string  `json:"name"`
	ParentName string  `json:"parentName,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Label is one detected object label.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Client is the detection service surface used by the extractor.
type Client interface {
	DetectModerationLabels(ctx context.Context, image []byte) ([]ModerationLabel, error)
	DetectLabels(ctx context.Context, image []byte) ([]Label, error)
	DetectText(ctx context.Context, image []byte) ([]models.OCRBlock, error)
}
