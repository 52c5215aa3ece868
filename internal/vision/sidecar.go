package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/collectiq/collectiq/internal/models"
)

// SidecarClient calls the detection sidecar over HTTP. Each operation posts
// the raw image bytes and decodes a JSON response.
type SidecarClient struct {
	baseURL string
	http    *http.Client
}

// NewSidecarClient creates a client for the detection sidecar.
func NewSidecarClient(baseURL string, timeout time.Duration) *SidecarClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SidecarClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *SidecarClient) post(ctx context.Context, path string, image []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("detection sidecar unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("detection sidecar %s returned %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// DetectModerationLabels screens the image for policy-violating content.
func (c *SidecarClient) DetectModerationLabels(ctx context.Context, image []byte) ([]ModerationLabel, error) {
	var out struct {
		Labels []ModerationLabel `json:"labels"`
	}
	if err := c.post(ctx, "/v1/moderation", image, &out); err != nil {
		return nil, err
	}
	return out.Labels, nil
}

// DetectLabels returns object labels for the image.
func (c *SidecarClient) DetectLabels(ctx context.Context, image []byte) ([]Label, error) {
	var out struct {
		Labels []Label `json:"labels"`
	}
	if err := c.post(ctx, "/v1/labels", image, &out); err != nil {
		return nil, err
	}
	return out.Labels, nil
}

// DetectText runs OCR and returns positioned text blocks.
func (c *SidecarClient) DetectText(ctx context.Context, image []byte) ([]models.OCRBlock, error) {
	var out struct {
		Blocks []models.OCRBlock `json:"blocks"`
	}
	if err := c.post(ctx, "/v1/text", image, &out); err != nil {
		return nil, err
	}
	return out.Blocks, nil
}
