// Package handlers implements the HTTP surface of the extraction pipeline
// service: document upload, extraction status, item verification,
// conversion to RFQ line items, and duplicate reporting.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps an AppError to its HTTP status via AppError.HTTPStatus,
// falling back to 500 for errors that never went through pkg/errors.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		writeJSON(w, ae.Code.HTTPStatus(), map[string]string{"error": ae.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
