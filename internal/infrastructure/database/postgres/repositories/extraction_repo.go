// Package repositories implements the durable persistence layer for the
// extraction pipeline on top of PostgreSQL via pgx.
package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// legalTransitions enumerates the forward-progression edges of the
// Extraction state machine. Any non-terminal state may additionally
// transition to Failed; that edge is checked separately.
var legalTransitions = map[extraction.State][]extraction.State{
	extraction.StatePending:     {extraction.StateParsing},
	extraction.StateParsing:     {extraction.StateNormalizing},
	extraction.StateNormalizing: {extraction.StateMatching},
	extraction.StateMatching:    {extraction.StateRouting},
	extraction.StateRouting:     {extraction.StateCompleted},
	extraction.StateCompleted:   {},
	extraction.StateFailed:      {},
}

func isLegalTransition(from, to extraction.State) bool {
	if to == extraction.StateFailed {
		return from != extraction.StateCompleted && from != extraction.StateFailed
	}
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ExtractionRepository is the Postgres-backed Extraction Store.
type ExtractionRepository struct {
	pool *pgxpool.Pool
}

// NewExtractionRepository constructs an ExtractionRepository backed by pool.
func NewExtractionRepository(pool *pgxpool.Pool) *ExtractionRepository {
	return &ExtractionRepository{pool: pool}
}

// Create inserts a new Extraction in PENDING state.
func (r *ExtractionRepository) Create(ctx context.Context, e *extraction.Extraction) (*extraction.Extraction, error) {
	e.ID = common.NewID()
	e.State = extraction.StatePending
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt

	const q = `
		INSERT INTO extractions
			(id, tenant_id, filename, file_type, file_size_bytes, uploader_id,
			 rfq_id, document_type, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := r.pool.Exec(ctx, q,
		e.ID, e.TenantID, e.Filename, e.FileType, e.FileSizeBytes, e.UploaderID,
		e.RFQID, e.DocumentType, e.State, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Internal("failed to create extraction").WithCause(err)
	}
	return e, nil
}

// Get loads an Extraction with its items.
func (r *ExtractionRepository) Get(ctx context.Context, id common.ID) (*extraction.Extraction, error) {
	const q = `
		SELECT id, tenant_id, filename, file_type, file_size_bytes, uploader_id,
		       rfq_id, document_type, state, created_at, processing_started_at,
		       processing_completed_at, updated_at, raw_result, total_items, items_auto,
		       items_quick_review, items_full_review, error_message, converted_at
		FROM extractions WHERE id = $1`

	var rawResult []byte
	e := &extraction.Extraction{}
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&e.ID, &e.TenantID, &e.Filename, &e.FileType, &e.FileSizeBytes, &e.UploaderID,
		&e.RFQID, &e.DocumentType, &e.State, &e.CreatedAt, &e.ProcessingStartedAt,
		&e.ProcessingCompleted, &e.UpdatedAt, &rawResult, &e.TotalItems, &e.ItemsAuto,
		&e.ItemsQuickReview, &e.ItemsFullReview, &e.ErrorMessage, &e.ConvertedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("extraction not found")
	}
	if err != nil {
		return nil, errors.Internal("failed to load extraction").WithCause(err)
	}
	if len(rawResult) > 0 {
		raw := &extraction.RawExtraction{}
		if err := json.Unmarshal(rawResult, raw); err != nil {
			return nil, errors.Internal("failed to decode raw extraction result").WithCause(err)
		}
		e.RawResult = raw
	}

	items, err := r.ItemsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Items = items
	return e, nil
}

// ListByRFQ returns every Extraction linked to rfqID, newest first.
func (r *ExtractionRepository) ListByRFQ(ctx context.Context, rfqID common.ID) ([]*extraction.Extraction, error) {
	const q = `
		SELECT id, tenant_id, filename, file_type, file_size_bytes, uploader_id,
		       rfq_id, document_type, state, created_at, processing_started_at,
		       processing_completed_at, updated_at, total_items, items_auto,
		       items_quick_review, items_full_review, error_message, converted_at
		FROM extractions WHERE rfq_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, rfqID)
	if err != nil {
		return nil, errors.Internal("failed to list extractions by rfq").WithCause(err)
	}
	defer rows.Close()

	var out []*extraction.Extraction
	for rows.Next() {
		e := &extraction.Extraction{}
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Filename, &e.FileType, &e.FileSizeBytes, &e.UploaderID,
			&e.RFQID, &e.DocumentType, &e.State, &e.CreatedAt, &e.ProcessingStartedAt,
			&e.ProcessingCompleted, &e.UpdatedAt, &e.TotalItems, &e.ItemsAuto,
			&e.ItemsQuickReview, &e.ItemsFullReview, &e.ErrorMessage, &e.ConvertedAt,
		); err != nil {
			return nil, errors.Internal("failed to scan extraction row").WithCause(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListByUploader returns every Extraction created by uploaderID, newest
// first, for the "list the caller's own extractions" API default.
func (r *ExtractionRepository) ListByUploader(ctx context.Context, uploaderID common.UserID) ([]*extraction.Extraction, error) {
	const q = `
		SELECT id, tenant_id, filename, file_type, file_size_bytes, uploader_id,
		       rfq_id, document_type, state, created_at, processing_started_at,
		       processing_completed_at, updated_at, total_items, items_auto,
		       items_quick_review, items_full_review, error_message, converted_at
		FROM extractions WHERE uploader_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, uploaderID)
	if err != nil {
		return nil, errors.Internal("failed to list extractions by uploader").WithCause(err)
	}
	defer rows.Close()

	var out []*extraction.Extraction
	for rows.Next() {
		e := &extraction.Extraction{}
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.Filename, &e.FileType, &e.FileSizeBytes, &e.UploaderID,
			&e.RFQID, &e.DocumentType, &e.State, &e.CreatedAt, &e.ProcessingStartedAt,
			&e.ProcessingCompleted, &e.UpdatedAt, &e.TotalItems, &e.ItemsAuto,
			&e.ItemsQuickReview, &e.ItemsFullReview, &e.ErrorMessage, &e.ConvertedAt,
		); err != nil {
			return nil, errors.Internal("failed to scan extraction row").WithCause(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveRawResult persists the OCR stage's output on the parent extraction.
// It does not advance the extraction's state; callers pair this with
// UpdateStatus.
func (r *ExtractionRepository) SaveRawResult(ctx context.Context, extractionID common.ID, raw *extraction.RawExtraction) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return errors.Internal("failed to encode raw extraction result").WithCause(err)
	}
	const q = `UPDATE extractions SET raw_result = $1 WHERE id = $2`
	if _, err := r.pool.Exec(ctx, q, data, extractionID); err != nil {
		return errors.Internal("failed to save raw extraction result").WithCause(err)
	}
	return nil
}

// UpdateStatus transitions an Extraction's state, enforcing legal
// transitions and stamping processing_started_at / processing_completed_at
// on the relevant edges. The row is locked with SELECT ... FOR UPDATE for
// the duration of the transition so concurrent stage workers serialize on
// a single extraction.
func (r *ExtractionRepository) UpdateStatus(ctx context.Context, id common.ID, newState extraction.State, errMsg *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Internal("failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	var currentState extraction.State
	err = tx.QueryRow(ctx, `SELECT state FROM extractions WHERE id = $1 FOR UPDATE`, id).Scan(&currentState)
	if err == pgx.ErrNoRows {
		return errors.NotFound("extraction not found")
	}
	if err != nil {
		return errors.Internal("failed to lock extraction row").WithCause(err)
	}

	if !isLegalTransition(currentState, newState) {
		return errors.IllegalTransition("cannot transition extraction from " + string(currentState) + " to " + string(newState))
	}

	now := time.Now()
	switch {
	case newState == extraction.StateParsing:
		_, err = tx.Exec(ctx, `UPDATE extractions SET state=$1, processing_started_at=$2, updated_at=$2 WHERE id=$3`, newState, now, id)
	case newState == extraction.StateCompleted || newState == extraction.StateFailed:
		_, err = tx.Exec(ctx, `UPDATE extractions SET state=$1, processing_completed_at=$2, updated_at=$2, error_message=$3 WHERE id=$4`, newState, now, errMsg, id)
	default:
		_, err = tx.Exec(ctx, `UPDATE extractions SET state=$1, updated_at=$2 WHERE id=$3`, newState, now, id)
	}
	if err != nil {
		return errors.Internal("failed to update extraction status").WithCause(err)
	}

	return tx.Commit(ctx)
}

// SaveItems bulk-inserts ExtractedLineItems for an extraction, assigning
// dense 1-based line numbers in slice order.
func (r *ExtractionRepository) SaveItems(ctx context.Context, extractionID common.ID, items []*extraction.ExtractedLineItem) ([]*extraction.ExtractedLineItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Internal("failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	for i, item := range items {
		item.ID = common.NewID()
		item.ExtractionID = extractionID
		item.LineNumber = i + 1

		const q = `
			INSERT INTO extracted_line_items
				(id, extraction_id, line_number, raw_text, normalized_description,
				 detected_quantity, detected_unit, detected_impa_code, match_confidence, match_method)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,'none')`
		_, err := tx.Exec(ctx, q,
			item.ID, item.ExtractionID, item.LineNumber, item.RawText, item.NormalizedDescription,
			item.DetectedQuantity, item.DetectedUnit, item.DetectedIMPACode,
		)
		if err != nil {
			return nil, errors.Internal("failed to insert extracted line item").WithCause(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Internal("failed to commit line items").WithCause(err)
	}
	return items, nil
}

// UpdateItemMatch persists stage-3 match fields for a single item.
func (r *ExtractionRepository) UpdateItemMatch(ctx context.Context, itemID common.ID, result extraction.MatchResult) error {
	alternatives, err := json.Marshal(result.Alternatives)
	if err != nil {
		return errors.Internal("failed to encode match alternatives").WithCause(err)
	}
	const q = `
		UPDATE extracted_line_items
		SET matched_impa_code=$1, matched_product_id=$2, match_confidence=$3, match_method=$4, alternatives=$5
		WHERE id=$6`
	_, err = r.pool.Exec(ctx, q, result.IMPACode, result.ProductID, result.Confidence, result.Method, alternatives, itemID)
	if err != nil {
		return errors.Internal("failed to update item match").WithCause(err)
	}
	return nil
}

// UpdateItemTier persists stage-4 routing output for a single item.
func (r *ExtractionRepository) UpdateItemTier(ctx context.Context, itemID common.ID, tier extraction.ConfidenceTier) error {
	const q = `UPDATE extracted_line_items SET confidence_tier=$1 WHERE id=$2`
	_, err := r.pool.Exec(ctx, q, tier, itemID)
	if err != nil {
		return errors.Internal("failed to update item tier").WithCause(err)
	}
	return nil
}

// VerifyItem marks an item as user-verified, optionally overriding its
// matched IMPA code. It requires the item to belong to extractionID.
func (r *ExtractionRepository) VerifyItem(ctx context.Context, itemID, extractionID common.ID, correctedIMPA *string) (*extraction.ExtractedLineItem, error) {
	const q = `
		UPDATE extracted_line_items
		SET user_verified = true, user_corrected_impa = $1
		WHERE id = $2 AND extraction_id = $3
		RETURNING id, extraction_id, line_number, raw_text, normalized_description,
		          detected_quantity, detected_unit, detected_impa_code,
		          matched_impa_code, matched_product_id, match_confidence, match_method, alternatives,
		          confidence_tier, user_verified, user_corrected_impa, is_duplicate, duplicate_of_id`

	var alternatives []byte
	item := &extraction.ExtractedLineItem{}
	err := r.pool.QueryRow(ctx, q, correctedIMPA, itemID, extractionID).Scan(
		&item.ID, &item.ExtractionID, &item.LineNumber, &item.RawText, &item.NormalizedDescription,
		&item.DetectedQuantity, &item.DetectedUnit, &item.DetectedIMPACode,
		&item.MatchedIMPACode, &item.MatchedProductID, &item.MatchConfidence, &item.MatchMethod, &alternatives,
		&item.ConfidenceTier, &item.UserVerified, &item.UserCorrectedIMPA, &item.IsDuplicate, &item.DuplicateOfID,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("line item not found for this extraction")
	}
	if err != nil {
		return nil, errors.Internal("failed to verify line item").WithCause(err)
	}
	if len(alternatives) > 0 {
		if err := json.Unmarshal(alternatives, &item.Alternatives); err != nil {
			return nil, errors.Internal("failed to decode match alternatives").WithCause(err)
		}
	}
	return item, nil
}

// ItemsFor returns every ExtractedLineItem of extractionID ordered by
// line_number.
func (r *ExtractionRepository) ItemsFor(ctx context.Context, extractionID common.ID) ([]*extraction.ExtractedLineItem, error) {
	const q = `
		SELECT id, extraction_id, line_number, raw_text, normalized_description,
		       detected_quantity, detected_unit, detected_impa_code,
		       matched_impa_code, matched_product_id, match_confidence, match_method, alternatives,
		       confidence_tier, user_verified, user_corrected_impa, is_duplicate, duplicate_of_id
		FROM extracted_line_items WHERE extraction_id = $1 ORDER BY line_number ASC`

	rows, err := r.pool.Query(ctx, q, extractionID)
	if err != nil {
		return nil, errors.Internal("failed to load extracted line items").WithCause(err)
	}
	defer rows.Close()

	var out []*extraction.ExtractedLineItem
	for rows.Next() {
		var alternatives []byte
		item := &extraction.ExtractedLineItem{}
		if err := rows.Scan(
			&item.ID, &item.ExtractionID, &item.LineNumber, &item.RawText, &item.NormalizedDescription,
			&item.DetectedQuantity, &item.DetectedUnit, &item.DetectedIMPACode,
			&item.MatchedIMPACode, &item.MatchedProductID, &item.MatchConfidence, &item.MatchMethod, &alternatives,
			&item.ConfidenceTier, &item.UserVerified, &item.UserCorrectedIMPA, &item.IsDuplicate, &item.DuplicateOfID,
		); err != nil {
			return nil, errors.Internal("failed to scan extracted line item").WithCause(err)
		}
		if len(alternatives) > 0 {
			if err := json.Unmarshal(alternatives, &item.Alternatives); err != nil {
				return nil, errors.Internal("failed to decode match alternatives").WithCause(err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpdateSummaryCounters persists stage-4's once-only aggregate counters.
func (r *ExtractionRepository) UpdateSummaryCounters(ctx context.Context, extractionID common.ID, total, auto, quick, full int) error {
	const q = `
		UPDATE extractions
		SET total_items=$1, items_auto=$2, items_quick_review=$3, items_full_review=$4
		WHERE id=$5`
	_, err := r.pool.Exec(ctx, q, total, auto, quick, full, extractionID)
	if err != nil {
		return errors.Internal("failed to update summary counters").WithCause(err)
	}
	return nil
}

// MarkConverted stamps converted_at the first time a COMPLETED extraction
// is converted. Subsequent conversions leave the timestamp untouched.
func (r *ExtractionRepository) MarkConverted(ctx context.Context, extractionID common.ID) error {
	const q = `UPDATE extractions SET converted_at = COALESCE(converted_at, $1) WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, time.Now(), extractionID)
	if err != nil {
		return errors.Internal("failed to mark extraction converted").WithCause(err)
	}
	return nil
}
