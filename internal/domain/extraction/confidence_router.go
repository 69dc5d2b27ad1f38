package extraction

// RouterConfig holds the two confidence thresholds that determine human
// review workload.
type RouterConfig struct {
	// TAuto is the minimum confidence routed straight to AUTO. Default 0.95.
	TAuto float64
	// TQuick is the minimum confidence routed to QUICK_REVIEW rather than
	// FULL_REVIEW. Default 0.80.
	TQuick float64
}

// RouteConfidence is a pure function mapping a match confidence to a
// review tier:
//
//	confidence >= TAuto            -> AUTO
//	TQuick <= confidence < TAuto   -> QUICK_REVIEW
//	confidence < TQuick            -> FULL_REVIEW
func RouteConfidence(confidence float64, cfg RouterConfig) ConfidenceTier {
	switch {
	case confidence >= cfg.TAuto:
		return TierAuto
	case confidence >= cfg.TQuick:
		return TierQuickReview
	default:
		return TierFullReview
	}
}
