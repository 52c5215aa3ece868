package vision

import (
	"context"

	"github.com/collectiq/collectiq/internal/models"
)

// Stub is a deterministic Client used in tests and local runs without the
// detection sidecar.
type Stub struct {
	Moderation []ModerationLabel
	Labels     []Label
	Blocks     []models.OCRBlock
	Err        error
}

func (s *Stub) DetectModerationLabels(ctx context.Context, image []byte) ([]ModerationLabel, error) {
	return s.Moderation, s.Err
}

func (s *Stub) DetectLabels(ctx context.Context, image []byte) ([]Label, error) {
	return s.Labels, s.Err
}

func (s *Stub) DetectText(ctx context.Context, image []byte) ([]models.OCRBlock, error) {
	return s.Blocks, s.Err
}
