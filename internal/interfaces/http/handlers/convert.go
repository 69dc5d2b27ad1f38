package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// Converter is the slice of conversion.Service the convert handler depends
// on.
type Converter interface {
	Convert(ctx context.Context, extractionID common.ID, itemIDs []common.ID) (*extraction.ConversionResult, error)
}

// ConversionHandler serves extraction-to-RFQ-line-item conversion.
type ConversionHandler struct {
	converter Converter
}

// NewConversionHandler constructs a ConversionHandler.
func NewConversionHandler(converter Converter) *ConversionHandler {
	return &ConversionHandler{converter: converter}
}

type convertRequest struct {
	ItemIDs []string `json:"item_ids,omitempty"`
}

// Convert handles POST /documents/extractions/{id}/convert.
func (h *ConversionHandler) Convert(w http.ResponseWriter, r *http.Request) {
	extractionID := common.ID(chi.URLParam(r, "id"))
	if extractionID == "" {
		writeError(w, apperrors.InvalidParam("missing extraction id"))
		return
	}

	var req convertRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.InvalidParam("malformed request body"))
			return
		}
	}

	itemIDs := make([]common.ID, len(req.ItemIDs))
	for i, id := range req.ItemIDs {
		itemIDs[i] = common.ID(id)
	}

	result, err := h.converter.Convert(r.Context(), extractionID, itemIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
