package models

import (
	"time"
)

// Event bus sources.
const (
	SourceCards   = "collectiq.cards"
	SourceBackend = "collectiq.backend"
)

// Event detail types.
const (
	EventCardCreated        = "CardCreated"
	EventCardUpdated        = "CardUpdated"
	EventValuationCompleted = "CardValuationCompleted"
)

// CardCreatedDetail is emitted by the external create-card collaborator and
// triggers the analysis pipeline.
type CardCreatedDetail struct {
	CardID     string    `json:"cardId"`
	UserID     string    `json:"userId"`
	FrontS3Key string    `json:"frontS3Key"`
	Timestamp  time.Time `json:"timestamp"`
}

// CardUpdatedDetail is emitted when a card's images change. FrontS3Key is
// optional; when absent the stored reference is used.
type CardUpdatedDetail struct {
	CardID     string    `json:"cardId"`
	UserID     string    `json:"userId"`
	FrontS3Key string    `json:"frontS3Key,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// OCRSummary is the compact OCR digest included in the completion event.
type OCRSummary struct {
	Name              *string `json:"name,omitempty"`
	Set               *string `json:"set,omitempty"`
	OverallConfidence float64 `json:"overallConfidence"`
	VerifiedByAI      bool    `json:"verifiedByAi"`
}

// ValuationCompletedDetail is emitted once per successful terminal
// aggregation of a submission.
type ValuationCompletedDetail struct {
	CardID             string      `json:"cardId"`
	UserID             string      `json:"userId"`
	Name               *string     `json:"name,omitempty"`
	Set                *string     `json:"set,omitempty"`
	ValueLow           float64     `json:"valueLow"`
	ValueMedian        float64     `json:"valueMedian"`
	ValueHigh          float64     `json:"valueHigh"`
	AuthenticityScore  float64     `json:"authenticityScore"`
	FakeDetected       bool        `json:"fakeDetected"`
	PricingConfidence  float64     `json:"pricingConfidence"`
	PricingSources     []string    `json:"pricingSources"`
	ValuationTrend     MarketTrend `json:"valuationTrend"`
	ValuationFairValue float64     `json:"valuationFairValue"`
	OCRMetadata        *OCRSummary `json:"ocrMetadata,omitempty"`
	RequestID          string      `json:"requestId"`
	Timestamp          time.Time   `json:"timestamp"`
}
