package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

var impaCodePattern = regexp.MustCompile(`^\d{6}$`)

type verifyItemRequest struct {
	CorrectedIMPA *string `json:"corrected_impa,omitempty"`
}

// Verify handles POST /documents/extractions/{id}/items/{item_id}/verify:
// marks the item as user-verified, optionally overriding its matched IMPA
// code with a manually entered one.
func (h *ExtractionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	extractionID := common.ID(chi.URLParam(r, "id"))
	itemID := common.ID(chi.URLParam(r, "item_id"))
	if extractionID == "" || itemID == "" {
		writeError(w, apperrors.InvalidParam("missing extraction or item id"))
		return
	}

	var req verifyItemRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.InvalidParam("malformed request body"))
			return
		}
	}
	if req.CorrectedIMPA != nil && !impaCodePattern.MatchString(*req.CorrectedIMPA) {
		writeError(w, apperrors.InvalidParam("corrected_impa must be a 6-digit IMPA code"))
		return
	}

	item, err := h.store.VerifyItem(r.Context(), itemID, extractionID, req.CorrectedIMPA)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
