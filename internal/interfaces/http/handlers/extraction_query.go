package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpmw "github.com/turtacn/shipcat-extractor/internal/interfaces/http/middleware"
	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// Get handles GET /documents/extractions/{id}: returns the Extraction and
// its current line items regardless of processing stage.
func (h *ExtractionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := common.ID(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, apperrors.InvalidParam("missing extraction id"))
		return
	}

	ext, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ext)
}

// List handles GET /documents/extractions: filtered by rfq_id when present,
// otherwise scoped to the caller's own uploads.
func (h *ExtractionHandler) List(w http.ResponseWriter, r *http.Request) {
	if rfqParam := r.URL.Query().Get("rfq_id"); rfqParam != "" {
		exts, err := h.store.ListByRFQ(r.Context(), common.ID(rfqParam))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, exts)
		return
	}

	uploaderID := common.UserID(httpmw.ContextGetUserID(r.Context()))
	exts, err := h.store.ListByUploader(r.Context(), uploaderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exts)
}
