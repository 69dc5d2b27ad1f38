package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/shipcat-extractor/internal/domain/rfq"
	"github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// RFQLineItemRepository persists the line items the Conversion Service
// writes from a completed Extraction.
type RFQLineItemRepository struct {
	pool *pgxpool.Pool
}

// NewRFQLineItemRepository constructs an RFQLineItemRepository backed by pool.
func NewRFQLineItemRepository(pool *pgxpool.Pool) *RFQLineItemRepository {
	return &RFQLineItemRepository{pool: pool}
}

// MaxLineNumber returns the highest existing line_number on rfqID, or 0 if
// the RFQ has no line items yet.
func (r *RFQLineItemRepository) MaxLineNumber(ctx context.Context, rfqID common.ID) (int, error) {
	const q = `SELECT COALESCE(MAX(line_number), 0) FROM rfq_line_items WHERE rfq_id = $1`
	var max int
	if err := r.pool.QueryRow(ctx, q, rfqID).Scan(&max); err != nil {
		return 0, errors.Internal("failed to read max rfq line number").WithCause(err)
	}
	return max, nil
}

// InsertLineItems bulk-inserts items in a single transaction, assigning
// each a fresh ID.
func (r *RFQLineItemRepository) InsertLineItems(ctx context.Context, items []*rfq.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Internal("failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO rfq_line_items
			(id, rfq_id, line_number, product_id, impa_code, description, quantity, unit_of_measure, specifications)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	for _, item := range items {
		item.ID = common.NewID()
		specs, err := json.Marshal(item.Specifications)
		if err != nil {
			return errors.Internal("failed to encode line item specifications").WithCause(err)
		}
		if _, err := tx.Exec(ctx, q,
			item.ID, item.RFQID, item.LineNumber, item.ProductID, item.IMPACode,
			item.Description, item.Quantity, item.UnitOfMeasure, specs,
		); err != nil {
			return errors.Internal("failed to insert rfq line item").WithCause(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Internal("failed to commit rfq line items").WithCause(err)
	}
	return nil
}
