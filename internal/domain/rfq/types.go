// Package rfq models the minimal slice of the surrounding marketplace's
// request-for-quotation aggregate that the extraction pipeline writes to:
// the line items a completed Extraction is converted into. Everything else
// about an RFQ (quoting, awarding, the vessel/order/dispute lifecycle) is
// standard marketplace CRUD outside this service's scope.
package rfq

import "github.com/turtacn/shipcat-extractor/pkg/types/common"

// DefaultUnitOfMeasure is used when a converted line item has no detected
// unit.
const DefaultUnitOfMeasure = "pcs"

// LineItem is one purchasable line on an RFQ, produced either directly by a
// marketplace user or by the Conversion Service from an Extraction.
type LineItem struct {
	ID             common.ID
	RFQID          common.ID
	LineNumber     int
	ProductID      *common.ID
	IMPACode       *string
	Description    string
	Quantity       float64
	UnitOfMeasure  string
	Specifications map[string]string
}
