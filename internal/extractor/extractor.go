// Package extractor implements the first pipeline stage: fetch the image,
// screen its content, localize the card, run OCR, and compute the visual
// metrics bundled into a FeatureEnvelope.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/models"
	"github.com/collectiq/collectiq/internal/vision"
)

// ImageFetcher fetches image bytes by opaque storage reference.
type ImageFetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Moderation categories that reject a submission outright.
var blockedCategories = []string{
	"explicit nudity",
	"suggestive",
	"violence",
	"disturbing",
	"visually disturbing",
	"rude gestures",
	"drugs",
	"tobacco",
	"alcohol",
	"gambling",
	"hate symbols",
	"nudity",
	"partial nudity",
	"exposed",
}

const moderationThreshold = 0.60

// Labels that count as evidence the image contains a trading card.
var cardEvidenceLabels = []string{
	"trading card",
	"card",
	"pokemon",
	"pokémon",
	"collectible",
}

const fetchAttempts = 3

// Extractor is the feature-extraction stage.
type Extractor struct {
	store  ImageFetcher
	vision vision.Client
}

// New creates a feature extractor.
func New(store ImageFetcher, vc vision.Client) *Extractor {
	return &Extractor{store: store, vision: vc}
}

// Extract produces a FeatureEnvelope for the referenced image. Content
// failures are terminal; transient source failures are retried with
// exponential backoff before surfacing as SOURCE_UNAVAILABLE.
func (e *Extractor) Extract(ctx context.Context, imageRef string) (*models.FeatureEnvelope, error) {
	data, err := e.fetchWithRetry(ctx, imageRef)
	if err != nil {
		return nil, err
	}

	// Content safety screen comes before any analysis.
	moderation, err := e.vision.DetectModerationLabels(ctx, data)
	if err != nil {
		return nil, &Error{Code: CodeSourceUnavailable, Message: "moderation screen failed", Cause: err}
	}
	for _, label := range moderation {
		if label.Confidence > moderationThreshold && isBlocked(label) {
			log.Warn().Str("image_ref", imageRef).Msg("submission rejected by content screen")
			return nil, inappropriateContent()
		}
	}

	labels, err := e.vision.DetectLabels(ctx, data)
	if err != nil {
		return nil, &Error{Code: CodeSourceUnavailable, Message: "label detection failed", Cause: err}
	}
	if !hasCardEvidence(labels) {
		return nil, invalidCardImage()
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Code: CodeExtractionFailed, Message: "failed to decode image", Cause: err}
	}

	// OCR runs on the original image: text detection works better with the
	// full frame than with a tight crop.
	blocks, err := e.vision.DetectText(ctx, data)
	if err != nil {
		return nil, &Error{Code: CodeSourceUnavailable, Message: "text detection failed", Cause: err}
	}

	card := img
	region := locateCard(img)
	if region.Found {
		card = imaging.Crop(img, region.Rect)
	} else {
		log.Debug().Str("image_ref", imageRef).Msg("card localization failed, using full image")
	}

	bounds := img.Bounds()
	env := &models.FeatureEnvelope{
		ImageRef:            imageRef,
		OCRBlocks:           blocks,
		Border:              borderMetrics(card),
		HolographicVariance: holographicVariance(card),
		Font:                fontMetrics(blocks, bounds.Dy()),
		Quality:             imageQuality(card),
		Image: models.ImageMetadata{
			Width:  bounds.Dx(),
			Height: bounds.Dy(),
			Format: format,
		},
	}

	log.Info().Str("image_ref", imageRef).
		Int("ocr_blocks", len(env.OCRBlocks)).
		Float64("holo_variance", env.HolographicVariance).
		Float64("border_symmetry", env.Border.SymmetryScore).
		Bool("localized", region.Found).
		Msg("feature extraction complete")
	return env, nil
}

// fetchWithRetry pulls the image with up to 3 attempts at 1s, 2s, 4s.
func (e *Extractor) fetchWithRetry(ctx context.Context, imageRef string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		data, err := e.store.Get(ctx, imageRef)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt < fetchAttempts {
			select {
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			case <-ctx.Done():
				return nil, &Error{Code: CodeSourceUnavailable, Message: "image fetch canceled", Cause: ctx.Err()}
			}
		}
	}
	return nil, &Error{
		Code:    CodeSourceUnavailable,
		Message: fmt.Sprintf("failed to fetch image after %d attempts", fetchAttempts),
		Cause:   lastErr,
	}
}

func isBlocked(label vision.ModerationLabel) bool {
	name := strings.ToLower(label.Name)
	parent := strings.ToLower(label.ParentName)
	for _, blocked := range blockedCategories {
		if strings.Contains(name, blocked) || strings.Contains(parent, blocked) {
			return true
		}
	}
	return false
}

func hasCardEvidence(labels []vision.Label) bool {
	for _, l := range labels {
		name := strings.ToLower(l.Name)
		for _, evidence := range cardEvidenceLabels {
			if strings.Contains(name, evidence) {
				return true
			}
		}
	}
	return false
}
