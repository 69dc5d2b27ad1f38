package dedup

import (
	"context"
	"testing"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

type fakeStore struct {
	extractions []*extraction.Extraction
	items       map[common.ID][]*extraction.ExtractedLineItem
}

func (s *fakeStore) ListByRFQ(_ context.Context, _ common.ID) ([]*extraction.Extraction, error) {
	return s.extractions, nil
}

func (s *fakeStore) ItemsFor(_ context.Context, extractionID common.ID) ([]*extraction.ExtractedLineItem, error) {
	return s.items[extractionID], nil
}

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestFindDuplicates_ExcludesUnmatchedItems(t *testing.T) {
	e1 := &extraction.Extraction{ID: common.NewID(), Filename: "a.pdf"}
	e2 := &extraction.Extraction{ID: common.NewID(), Filename: "b.pdf"}
	store := &fakeStore{
		extractions: []*extraction.Extraction{e1, e2},
		items: map[common.ID][]*extraction.ExtractedLineItem{
			e1.ID: {{ID: common.NewID(), MatchedIMPACode: strPtr("123456"), DetectedQuantity: floatPtr(10)}},
			e2.ID: {
				{ID: common.NewID(), MatchedIMPACode: strPtr("123456"), DetectedQuantity: floatPtr(10)},
				{ID: common.NewID(), MatchedIMPACode: nil},
			},
		},
	}
	svc := NewService(store)

	groups, err := svc.FindDuplicates(context.Background(), common.NewID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
	if len(groups[0].Items) != 2 {
		t.Fatalf("expected 2 members in the group, got %d", len(groups[0].Items))
	}
}

func TestFindDuplicates_SingleExtractionNeverDuplicates(t *testing.T) {
	e1 := &extraction.Extraction{ID: common.NewID(), Filename: "a.pdf"}
	store := &fakeStore{
		extractions: []*extraction.Extraction{e1},
		items: map[common.ID][]*extraction.ExtractedLineItem{
			e1.ID: {{ID: common.NewID(), MatchedIMPACode: strPtr("123456"), DetectedQuantity: floatPtr(10)}},
		},
	}
	svc := NewService(store)

	groups, err := svc.FindDuplicates(context.Background(), common.NewID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no duplicate groups from a single extraction, got %d", len(groups))
	}
}
