// Package postgres implements the persistence interfaces over PostgreSQL
// with sqlx. Structured analysis payloads (OCR metadata, signals, summary)
// live in JSONB columns beside the scalar fields.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/collectiq/collectiq/internal/models"
	"github.com/collectiq/collectiq/internal/persistence"
)

type cardsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCardsRepo creates a PostgreSQL card repository.
func NewCardsRepo(db *sqlx.DB, timeout time.Duration) persistence.CardRepo {
	return &cardsRepo{db: db, timeout: timeout}
}

const cardColumns = `
	user_id, card_id, created_at, updated_at, deleted_at,
	front_image_ref, back_image_ref,
	name, set_name, rarity, collector_number, condition, id_confidence,
	value_low, value_median, value_high, comps_count, pricing_sources, pricing_message,
	valuation_summary, authenticity_score, authenticity_signals, ocr_metadata`

// Upsert writes the full card row, creating it when absent. Analysis
// columns are overwritten wholesale; created_at survives conflicts.
func (r *cardsRepo) Upsert(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	summaryJSON, signalsJSON, metadataJSON, err := marshalPayloads(card)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, now(), now(), NULL,
			$3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20)
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			updated_at = now(),
			front_image_ref = EXCLUDED.front_image_ref,
			back_image_ref = EXCLUDED.back_image_ref,
			name = EXCLUDED.name,
			set_name = EXCLUDED.set_name,
			rarity = EXCLUDED.rarity,
			collector_number = EXCLUDED.collector_number,
			condition = EXCLUDED.condition,
			id_confidence = EXCLUDED.id_confidence,
			value_low = EXCLUDED.value_low,
			value_median = EXCLUDED.value_median,
			value_high = EXCLUDED.value_high,
			comps_count = EXCLUDED.comps_count,
			pricing_sources = EXCLUDED.pricing_sources,
			pricing_message = EXCLUDED.pricing_message,
			valuation_summary = EXCLUDED.valuation_summary,
			authenticity_score = EXCLUDED.authenticity_score,
			authenticity_signals = EXCLUDED.authenticity_signals,
			ocr_metadata = EXCLUDED.ocr_metadata`

	_, err = r.db.ExecContext(ctx, query,
		card.UserID, card.CardID,
		card.FrontImageRef, card.BackImageRef,
		card.Name, card.Set, card.Rarity, card.CollectorNumber, card.Condition, card.IDConfidence,
		card.ValueLow, card.ValueMedian, card.ValueHigh, card.CompsCount,
		pq.Array(card.PricingSources), card.PricingMessage,
		summaryJSON, card.AuthenticityScore, signalsJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}
	return nil
}

// UpdateAnalysis merges analysis fields into an existing live row. The
// ownership check distinguishes a missing card from a foreign one.
func (r *cardsRepo) UpdateAnalysis(ctx context.Context, card *models.Card) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	summaryJSON, signalsJSON, metadataJSON, err := marshalPayloads(card)
	if err != nil {
		return err
	}

	query := `
		UPDATE cards SET
			updated_at = now(),
			name = COALESCE($3, name),
			set_name = COALESCE($4, set_name),
			rarity = COALESCE($5, rarity),
			collector_number = COALESCE($6, collector_number),
			condition = COALESCE($7, condition),
			id_confidence = COALESCE($8, id_confidence),
			value_low = COALESCE($9, value_low),
			value_median = COALESCE($10, value_median),
			value_high = COALESCE($11, value_high),
			comps_count = COALESCE($12, comps_count),
			pricing_sources = COALESCE($13, pricing_sources),
			pricing_message = COALESCE($14, pricing_message),
			valuation_summary = COALESCE($15, valuation_summary),
			authenticity_score = COALESCE($16, authenticity_score),
			authenticity_signals = COALESCE($17, authenticity_signals),
			ocr_metadata = COALESCE($18, ocr_metadata)
		WHERE user_id = $1 AND card_id = $2 AND deleted_at IS NULL`

	var sources interface{}
	if card.PricingSources != nil {
		sources = pq.Array(card.PricingSources)
	}

	result, err := r.db.ExecContext(ctx, query,
		card.UserID, card.CardID,
		card.Name, card.Set, card.Rarity, card.CollectorNumber, card.Condition, card.IDConfidence,
		card.ValueLow, card.ValueMedian, card.ValueHigh, card.CompsCount,
		sources, card.PricingMessage,
		summaryJSON, card.AuthenticityScore, signalsJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to update card analysis: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return r.classifyMiss(ctx, card.UserID, card.CardID)
	}
	return nil
}

// classifyMiss decides whether an unmatched update means not-found or
// foreign ownership.
func (r *cardsRepo) classifyMiss(ctx context.Context, userID, cardID string) error {
	var owner string
	err := r.db.QueryRowxContext(ctx,
		`SELECT user_id FROM cards WHERE card_id = $1 AND deleted_at IS NULL LIMIT 1`,
		cardID).Scan(&owner)
	if err == sql.ErrNoRows {
		return persistence.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check card ownership: %w", err)
	}
	if owner != userID {
		return persistence.ErrForbidden
	}
	return persistence.ErrNotFound
}

// Get fetches a card by owner and id, excluding soft-deleted rows.
func (r *cardsRepo) Get(ctx context.Context, userID, cardID string) (*models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE user_id = $1 AND card_id = $2 AND deleted_at IS NULL`

	row := r.db.QueryRowxContext(ctx, query, userID, cardID)
	card, err := scanCard(row)
	if err == sql.ErrNoRows {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// ListByUser returns the user's live cards, newest first.
func (r *cardsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Card, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

// SoftDelete marks the card deleted without removing the row.
func (r *cardsRepo) SoftDelete(ctx context.Context, userID, cardID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET deleted_at = now(), updated_at = now()
		 WHERE user_id = $1 AND card_id = $2 AND deleted_at IS NULL`,
		userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to soft-delete card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return r.classifyMiss(ctx, userID, cardID)
	}
	return nil
}

// HardDelete removes the row entirely.
func (r *cardsRepo) HardDelete(ctx context.Context, userID, cardID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cards WHERE user_id = $1 AND card_id = $2`,
		userID, cardID)
	if err != nil {
		return fmt.Errorf("failed to hard-delete card: %w", err)
	}
	return nil
}

// scanner covers sqlx.Row and sqlx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row scanner) (*models.Card, error) {
	var card models.Card
	var summaryJSON, signalsJSON, metadataJSON []byte
	var sources pq.StringArray

	err := row.Scan(
		&card.UserID, &card.CardID, &card.CreatedAt, &card.UpdatedAt, &card.DeletedAt,
		&card.FrontImageRef, &card.BackImageRef,
		&card.Name, &card.Set, &card.Rarity, &card.CollectorNumber, &card.Condition, &card.IDConfidence,
		&card.ValueLow, &card.ValueMedian, &card.ValueHigh, &card.CompsCount, &sources, &card.PricingMessage,
		&summaryJSON, &card.AuthenticityScore, &signalsJSON, &metadataJSON)
	if err != nil {
		return nil, err
	}

	card.PricingSources = sources
	if len(summaryJSON) > 0 {
		card.ValuationSummary = &models.ValuationSummary{}
		if err := json.Unmarshal(summaryJSON, card.ValuationSummary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal valuation summary: %w", err)
		}
	}
	if len(signalsJSON) > 0 {
		card.AuthenticitySignals = &models.AuthenticitySignals{}
		if err := json.Unmarshal(signalsJSON, card.AuthenticitySignals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authenticity signals: %w", err)
		}
	}
	if len(metadataJSON) > 0 {
		card.OCRMetadata = &models.CardMetadata{}
		if err := json.Unmarshal(metadataJSON, card.OCRMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ocr metadata: %w", err)
		}
	}
	return &card, nil
}

func marshalPayloads(card *models.Card) (summary, signals, metadata []byte, err error) {
	if card.ValuationSummary != nil {
		if summary, err = json.Marshal(card.ValuationSummary); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal valuation summary: %w", err)
		}
	}
	if card.AuthenticitySignals != nil {
		if signals, err = json.Marshal(card.AuthenticitySignals); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal authenticity signals: %w", err)
		}
	}
	if card.OCRMetadata != nil {
		if metadata, err = json.Marshal(card.OCRMetadata); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal ocr metadata: %w", err)
		}
	}
	return summary, signals, metadata, nil
}
