package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// DuplicateFinder is the slice of dedup.Service the duplicates handler
// depends on.
type DuplicateFinder interface {
	FindDuplicates(ctx context.Context, rfqID common.ID) ([]extraction.DuplicateGroup, error)
}

// ExtractionGetter resolves the RFQ an extraction is linked to.
type ExtractionGetter interface {
	Get(ctx context.Context, id common.ID) (*extraction.Extraction, error)
}

// DuplicatesHandler reports cross-document duplicate line items for the RFQ
// an extraction is linked to.
type DuplicatesHandler struct {
	extractions ExtractionGetter
	dedup       DuplicateFinder
}

// NewDuplicatesHandler constructs a DuplicatesHandler.
func NewDuplicatesHandler(extractions ExtractionGetter, dedup DuplicateFinder) *DuplicatesHandler {
	return &DuplicatesHandler{extractions: extractions, dedup: dedup}
}

// List handles GET /documents/extractions/{id}/duplicates. An extraction
// with no linked RFQ has nothing to deduplicate against, so it reports an
// empty list rather than an error.
func (h *DuplicatesHandler) List(w http.ResponseWriter, r *http.Request) {
	extractionID := common.ID(chi.URLParam(r, "id"))
	if extractionID == "" {
		writeError(w, apperrors.InvalidParam("missing extraction id"))
		return
	}

	ext, err := h.extractions.Get(r.Context(), extractionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if ext.RFQID == nil {
		writeJSON(w, http.StatusOK, []extraction.DuplicateGroup{})
		return
	}

	groups, err := h.dedup.FindDuplicates(r.Context(), *ext.RFQID)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []extraction.DuplicateGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}
