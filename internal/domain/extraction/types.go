// Package extraction implements the document-to-catalog extraction pipeline:
// normalizing OCR output, running the IMPA matching cascade, routing line
// items by confidence, and detecting cross-document duplicates within an RFQ.
package extraction

import (
	"time"

	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// State is the lifecycle state of an Extraction. Progression is monotonic
// except that any non-terminal state may transition to Failed.
type State string

const (
	StatePending     State = "PENDING"
	StateParsing     State = "PARSING"
	StateNormalizing State = "NORMALIZING"
	StateMatching    State = "MATCHING"
	StateRouting     State = "ROUTING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// terminal reports whether s admits no further stage transitions.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// DocumentType is an optional hint about the shape of the source document.
type DocumentType string

const (
	DocTypeSystemRequisition DocumentType = "system_requisition"
	DocTypePurchaseOrder     DocumentType = "purchase_order"
	DocTypeInventoryList     DocumentType = "inventory_list"
	DocTypeMaintenanceExport DocumentType = "maintenance_export"
	DocTypeHandwrittenForm   DocumentType = "handwritten_form"
	DocTypeMarkedCatalog     DocumentType = "marked_catalog"
	DocTypeNameplatePhoto    DocumentType = "nameplate_photo"
	DocTypeMixedForm         DocumentType = "mixed_form"
)

// MatchMethod records which cascade stage produced a line item's match, or
// "none" when no stage produced one.
type MatchMethod string

const (
	MatchMethodRegex    MatchMethod = "regex"
	MatchMethodSemantic MatchMethod = "semantic"
	MatchMethodLLM      MatchMethod = "llm"
	MatchMethodNone     MatchMethod = "none"
)

// ConfidenceTier is the routing decision assigned to a matched line item in
// stage 4, determining whether it needs human review.
type ConfidenceTier string

const (
	TierAuto         ConfidenceTier = "AUTO"
	TierQuickReview  ConfidenceTier = "QUICK_REVIEW"
	TierFullReview   ConfidenceTier = "FULL_REVIEW"
)

// RawExtraction is the opaque payload persisted after stage 1 (OCR parse).
// It is immutable once written.
type RawExtraction struct {
	Lines  []string        `json:"lines"`
	Tables [][][]string    `json:"tables,omitempty"`
	Status string          `json:"status,omitempty"` // e.g. "ok", "no_extraction_available"
}

// Extraction is the aggregate root for one durable processing attempt of one
// uploaded document.
type Extraction struct {
	ID       common.ID
	TenantID common.TenantID

	Filename       string
	FileType       string
	FileSizeBytes  int64
	UploaderID     common.UserID
	RFQID          *common.ID
	DocumentType   *DocumentType

	State State

	CreatedAt           time.Time
	ProcessingStartedAt *time.Time
	ProcessingCompleted *time.Time
	UpdatedAt           time.Time

	RawResult *RawExtraction

	TotalItems         int
	ItemsAuto          int
	ItemsQuickReview   int
	ItemsFullReview    int

	ErrorMessage *string

	ConvertedAt *time.Time

	Items []*ExtractedLineItem
}

// ExtractedLineItem is one conceptual purchase line identified inside an
// Extraction. Its lifetime is bounded by the parent Extraction.
type ExtractedLineItem struct {
	ID            common.ID
	ExtractionID  common.ID
	LineNumber    int
	RawText       string

	NormalizedDescription string
	DetectedQuantity      *float64
	DetectedUnit          *string
	DetectedIMPACode      *string

	MatchedIMPACode  *string
	MatchedProductID *common.ID
	MatchConfidence  float64
	MatchMethod      MatchMethod
	Alternatives     []MatchAlternative

	ConfidenceTier *ConfidenceTier

	UserVerified      bool
	UserCorrectedIMPA *string

	IsDuplicate    bool
	DuplicateOfID  *common.ID
}

// MatchAlternative is a secondary candidate surfaced alongside the selected
// match, for reviewer context.
type MatchAlternative struct {
	IMPACode   string
	ProductID  common.ID
	Name       string
	Similarity float64
}

// EffectiveIMPACode returns the code that should be used for conversion: the
// human correction if present, otherwise the matched code.
func (i *ExtractedLineItem) EffectiveIMPACode() *string {
	if i.UserCorrectedIMPA != nil {
		return i.UserCorrectedIMPA
	}
	return i.MatchedIMPACode
}

// DuplicateGroup is a read-only report of ExtractedLineItems across multiple
// Extractions of the same RFQ that match the same IMPA code with quantities
// close enough to be considered the same requirement.
type DuplicateGroup struct {
	IMPACode              string
	Items                 []DuplicateGroupItem
	SuggestedMergeQuantity float64
}

// DuplicateGroupItem is one member of a DuplicateGroup.
type DuplicateGroupItem struct {
	ExtractionID   common.ID
	ItemID         common.ID
	Quantity       *float64
	SourceFilename string
}

// ConversionResult summarizes the outcome of converting a completed
// Extraction's eligible items into RFQ line items.
type ConversionResult struct {
	RFQID              common.ID
	LineItemsCreated   int
	ItemsPendingReview int
}
