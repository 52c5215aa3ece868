package models

// BlockType identifies the granularity of an OCR block.
type BlockType string

const (
	BlockLine BlockType = "LINE"
	BlockWord BlockType = "WORD"
)

// BoundingBox is a normalized region of the source image. All coordinates
// are fractions of the image dimensions in [0,1].
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OCRBlock is a single piece of detected text with position and confidence.
type OCRBlock struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Type        BlockType   `json:"type"`
}

// BorderMetrics describes the card's border geometry relative to the
// localized card region.
type BorderMetrics struct {
	TopRatio      float64 `json:"topRatio"`
	BottomRatio   float64 `json:"bottomRatio"`
	LeftRatio     float64 `json:"leftRatio"`
	RightRatio    float64 `json:"rightRatio"`
	SymmetryScore float64 `json:"symmetryScore"`
}

// SideRatios returns the four border ratios in a fixed order.
func (b BorderMetrics) SideRatios() []float64 {
	return []float64{b.TopRatio, b.BottomRatio, b.LeftRatio, b.RightRatio}
}

// FontMetrics describes text-rendering characteristics extracted from the
// OCR blocks on the cropped card region.
type FontMetrics struct {
	KerningSamples   []float64 `json:"kerningSamples"`
	AlignmentScore   float64   `json:"alignmentScore"`
	FontSizeVariance float64   `json:"fontSizeVariance"`
}

// ImageQuality captures capture-quality metrics used by downstream signals.
type ImageQuality struct {
	BlurScore     float64 `json:"blurScore"`
	GlareDetected bool    `json:"glareDetected"`
	Brightness    float64 `json:"brightness"`
}

// ImageMetadata describes the fetched source image.
type ImageMetadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// FeatureEnvelope is the feature extractor's output: OCR blocks from the
// original image plus visual metrics computed on the localized card region.
// It is pipeline-scoped and never persisted.
type FeatureEnvelope struct {
	ImageRef            string        `json:"imageRef"`
	OCRBlocks           []OCRBlock    `json:"ocrBlocks"`
	Border              BorderMetrics `json:"border"`
	HolographicVariance float64       `json:"holographicVariance"`
	Font                FontMetrics   `json:"font"`
	Quality             ImageQuality  `json:"quality"`
	Image               ImageMetadata `json:"image"`
}

// TopmostBlock returns the OCR block with the smallest top coordinate, or
// nil when no blocks were detected. Used by the OCR fallback path.
func (e *FeatureEnvelope) TopmostBlock() *OCRBlock {
	var best *OCRBlock
	for i := range e.OCRBlocks {
		b := &e.OCRBlocks[i]
		if best == nil || b.BoundingBox.Top < best.BoundingBox.Top {
			best = b
		}
	}
	return best
}
