package models

import (
	"time"
)

// Card is the persisted source of truth for a single submission. It is
// identified by the (UserID, CardID) pair and exclusively owned by its user.
// The result aggregator is the only writer of analysis fields.
type Card struct {
	UserID    string     `json:"userId" db:"user_id"`
	CardID    string     `json:"cardId" db:"card_id"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`

	// Image references are opaque object-store keys, never URLs.
	FrontImageRef string  `json:"frontImageRef" db:"front_image_ref"`
	BackImageRef  *string `json:"backImageRef,omitempty" db:"back_image_ref"`

	// Identification is populated by the OCR reasoner only after AI verification.
	Name            *string  `json:"name,omitempty" db:"name"`
	Set             *string  `json:"set,omitempty" db:"set_name"`
	Rarity          *string  `json:"rarity,omitempty" db:"rarity"`
	CollectorNumber *string  `json:"collectorNumber,omitempty" db:"collector_number"`
	Condition       *string  `json:"condition,omitempty" db:"condition"`
	IDConfidence    *float64 `json:"idConfidence,omitempty" db:"id_confidence"`

	// Pricing is populated by the pricing aggregator.
	ValueLow         *float64       `json:"valueLow,omitempty" db:"value_low"`
	ValueMedian      *float64       `json:"valueMedian,omitempty" db:"value_median"`
	ValueHigh        *float64       `json:"valueHigh,omitempty" db:"value_high"`
	CompsCount       *int           `json:"compsCount,omitempty" db:"comps_count"`
	PricingSources   []string       `json:"pricingSources,omitempty" db:"-"`
	PricingMessage   *string        `json:"pricingMessage,omitempty" db:"pricing_message"`
	ValuationSummary *ValuationSummary `json:"valuationSummary,omitempty" db:"-"`

	// Authenticity is populated by the authenticity scorer.
	AuthenticityScore   *float64             `json:"authenticityScore,omitempty" db:"authenticity_score"`
	AuthenticitySignals *AuthenticitySignals `json:"authenticitySignals,omitempty" db:"-"`

	// OCRMetadata is always stored when produced, even when unverified.
	OCRMetadata *CardMetadata `json:"ocrMetadata,omitempty" db:"-"`
}

// Deleted reports whether the card has been soft-deleted.
func (c *Card) Deleted() bool {
	return c.DeletedAt != nil
}

// HasPricing reports whether the pricing stage has populated this card.
func (c *Card) HasPricing() bool {
	return c.ValueLow != nil && c.ValueMedian != nil && c.ValueHigh != nil
}
