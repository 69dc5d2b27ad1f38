package extraction

import "github.com/turtacn/shipcat-extractor/pkg/types/common"

const duplicateQuantityTolerance = 0.50

// DedupCandidate is the flattened view of one matched ExtractedLineItem
// the dedup engine needs; it is independent of persistence shape so
// callers can assemble it from a join or from in-memory fakes alike.
type DedupCandidate struct {
	ExtractionID   common.ID
	ItemID         common.ID
	MatchedIMPA    string
	Quantity       *float64
	SourceFilename string
}

// FindDuplicateGroups groups candidates by matched IMPA code across
// multiple extractions of the same RFQ, keeping only groups that span at
// least two distinct extractions and whose non-null quantities agree
// within tolerance. The engine is read-only: it never decides is_duplicate
// or duplicate_of_id, only reports candidate groups for human review.
func FindDuplicateGroups(candidates []DedupCandidate) []DuplicateGroup {
	byCode := make(map[string][]DedupCandidate)
	order := make([]string, 0)
	for _, c := range candidates {
		if c.MatchedIMPA == "" {
			continue
		}
		if _, seen := byCode[c.MatchedIMPA]; !seen {
			order = append(order, c.MatchedIMPA)
		}
		byCode[c.MatchedIMPA] = append(byCode[c.MatchedIMPA], c)
	}

	var groups []DuplicateGroup
	for _, code := range order {
		members := byCode[code]

		distinctExtractions := make(map[common.ID]struct{})
		for _, m := range members {
			distinctExtractions[m.ExtractionID] = struct{}{}
		}
		if len(distinctExtractions) < 2 {
			continue
		}

		if quantitiesDisagree(members) {
			continue
		}

		groups = append(groups, DuplicateGroup{
			IMPACode:               code,
			Items:                  toGroupItems(members),
			SuggestedMergeQuantity: maxQuantity(members),
		})
	}
	return groups
}

// quantitiesDisagree reports whether the group's non-null quantities span
// a relative gap exceeding the tolerance, per (max-min)/max > 0.50.
func quantitiesDisagree(members []DedupCandidate) bool {
	var min, max float64
	count := 0
	for _, m := range members {
		if m.Quantity == nil {
			continue
		}
		q := *m.Quantity
		if count == 0 || q < min {
			min = q
		}
		if count == 0 || q > max {
			max = q
		}
		count++
	}
	if count < 2 || max == 0 {
		return false
	}
	return (max-min)/max > duplicateQuantityTolerance
}

func maxQuantity(members []DedupCandidate) float64 {
	var max float64
	for _, m := range members {
		if m.Quantity != nil && *m.Quantity > max {
			max = *m.Quantity
		}
	}
	return max
}

func toGroupItems(members []DedupCandidate) []DuplicateGroupItem {
	out := make([]DuplicateGroupItem, 0, len(members))
	for _, m := range members {
		out = append(out, DuplicateGroupItem{
			ExtractionID:   m.ExtractionID,
			ItemID:         m.ItemID,
			Quantity:       m.Quantity,
			SourceFilename: m.SourceFilename,
		})
	}
	return out
}
