// Package dedup assembles DedupCandidates from persisted extractions and
// runs the cross-document duplicate detector over them.
package dedup

import (
	"context"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// Store is the slice of the Extraction Store the service needs to load an
// RFQ's extractions and their matched line items.
type Store interface {
	ListByRFQ(ctx context.Context, rfqID common.ID) ([]*extraction.Extraction, error)
	ItemsFor(ctx context.Context, extractionID common.ID) ([]*extraction.ExtractedLineItem, error)
}

// Service runs the duplicate-group report for an RFQ.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// FindDuplicates loads every extraction attached to rfqID, flattens their
// matched line items into candidates, and reports duplicate groups. Items
// with no matched IMPA code are excluded before grouping, matching the
// domain engine's contract.
func (s *Service) FindDuplicates(ctx context.Context, rfqID common.ID) ([]extraction.DuplicateGroup, error) {
	extractions, err := s.store.ListByRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	var candidates []extraction.DedupCandidate
	for _, ext := range extractions {
		items, err := s.store.ItemsFor(ctx, ext.ID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.MatchedIMPACode == nil {
				continue
			}
			candidates = append(candidates, extraction.DedupCandidate{
				ExtractionID:   ext.ID,
				ItemID:         item.ID,
				MatchedIMPA:    *item.MatchedIMPACode,
				Quantity:       item.DetectedQuantity,
				SourceFilename: ext.Filename,
			})
		}
	}

	return extraction.FindDuplicateGroups(candidates), nil
}
