// Package conversion implements the Conversion Service: turning a completed
// Extraction's eligible line items into durable RFQ line items.
package conversion

import (
	"context"
	"fmt"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/domain/rfq"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/redis"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// ExtractionStore is the slice of the Extraction Store the service needs to
// read the source Extraction and mark it converted.
type ExtractionStore interface {
	Get(ctx context.Context, id common.ID) (*extraction.Extraction, error)
	MarkConverted(ctx context.Context, id common.ID) error
}

// LineItemStore is the slice of the RFQ line item repository the service
// writes through.
type LineItemStore interface {
	MaxLineNumber(ctx context.Context, rfqID common.ID) (int, error)
	InsertLineItems(ctx context.Context, items []*rfq.LineItem) error
}

// Service implements the Conversion Service.
type Service struct {
	extractions ExtractionStore
	lineItems   LineItemStore
	locks       redis.LockFactory
	log         logging.Logger
}

// NewService constructs a Service.
func NewService(extractions ExtractionStore, lineItems LineItemStore, locks redis.LockFactory, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{extractions: extractions, lineItems: lineItems, locks: locks, log: log}
}

// Convert turns the eligible items of a COMPLETED extraction into RFQ line
// items. When itemIDs is non-empty, exactly those items are converted
// regardless of tier or verification state; otherwise every item with tier
// AUTO or with UserVerified set is selected. Concurrent calls for the same
// extraction are serialized by an advisory lock, but the call itself is not
// idempotent: repeating it appends a fresh batch of line items.
func (s *Service) Convert(ctx context.Context, extractionID common.ID, itemIDs []common.ID) (*extraction.ConversionResult, error) {
	lock := s.locks.NewMutex(fmt.Sprintf("convert:%s", extractionID))
	acquired, err := lock.TryLock(ctx)
	if err != nil {
		return nil, errors.Internal("failed to acquire conversion lock").WithCause(err)
	}
	if !acquired {
		return nil, errors.Conflict("extraction is already being converted")
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			s.log.Warn("failed to release conversion lock", logging.String("extraction_id", string(extractionID)), logging.Err(err))
		}
	}()

	ext, err := s.extractions.Get(ctx, extractionID)
	if err != nil {
		return nil, err
	}
	if ext.State != extraction.StateCompleted {
		return nil, errors.IllegalTransition(fmt.Sprintf("extraction is %s, not COMPLETED", ext.State))
	}
	if ext.RFQID == nil {
		return nil, errors.InvalidParam("extraction has no associated RFQ")
	}
	rfqID := *ext.RFQID

	selected := selectItems(ext.Items, itemIDs)

	offset, err := s.lineItems.MaxLineNumber(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	lineItems := make([]*rfq.LineItem, 0, len(selected))
	for i, item := range selected {
		lineItems = append(lineItems, buildLineItem(rfqID, offset+i+1, item))
	}
	if err := s.lineItems.InsertLineItems(ctx, lineItems); err != nil {
		return nil, err
	}

	if err := s.extractions.MarkConverted(ctx, extractionID); err != nil {
		return nil, err
	}

	pending := countPendingReview(ext.Items)
	s.log.Info("extraction converted",
		logging.String("extraction_id", string(extractionID)),
		logging.String("rfq_id", string(rfqID)),
		logging.Int("line_items_created", len(lineItems)),
		logging.Int("items_pending_review", pending))

	return &extraction.ConversionResult{
		RFQID:              rfqID,
		LineItemsCreated:   len(lineItems),
		ItemsPendingReview: pending,
	}, nil
}

// selectItems applies the explicit-IDs-else-tier selection rule.
func selectItems(items []*extraction.ExtractedLineItem, itemIDs []common.ID) []*extraction.ExtractedLineItem {
	if len(itemIDs) > 0 {
		wanted := make(map[common.ID]bool, len(itemIDs))
		for _, id := range itemIDs {
			wanted[id] = true
		}
		var out []*extraction.ExtractedLineItem
		for _, item := range items {
			if wanted[item.ID] {
				out = append(out, item)
			}
		}
		return out
	}
	var out []*extraction.ExtractedLineItem
	for _, item := range items {
		if (item.ConfidenceTier != nil && *item.ConfidenceTier == extraction.TierAuto) || item.UserVerified {
			out = append(out, item)
		}
	}
	return out
}

// countPendingReview counts items across the whole extraction that still
// need human attention: QUICK_REVIEW or FULL_REVIEW tier and not yet
// verified by a user.
func countPendingReview(items []*extraction.ExtractedLineItem) int {
	var n int
	for _, item := range items {
		if item.UserVerified || item.ConfidenceTier == nil {
			continue
		}
		if *item.ConfidenceTier == extraction.TierQuickReview || *item.ConfidenceTier == extraction.TierFullReview {
			n++
		}
	}
	return n
}

// buildLineItem maps one ExtractedLineItem onto an RFQ line item per the
// conversion field rules.
func buildLineItem(rfqID common.ID, lineNumber int, item *extraction.ExtractedLineItem) *rfq.LineItem {
	description := item.NormalizedDescription
	if description == "" {
		description = extraction.NormalizeDescription(item.RawText)
	}
	quantity := 1.0
	if item.DetectedQuantity != nil {
		quantity = *item.DetectedQuantity
	}
	unit := rfq.DefaultUnitOfMeasure
	if item.DetectedUnit != nil && *item.DetectedUnit != "" {
		unit = *item.DetectedUnit
	}
	return &rfq.LineItem{
		RFQID:         rfqID,
		LineNumber:    lineNumber,
		ProductID:     item.MatchedProductID,
		IMPACode:      item.EffectiveIMPACode(),
		Description:   description,
		Quantity:      quantity,
		UnitOfMeasure: unit,
	}
}
