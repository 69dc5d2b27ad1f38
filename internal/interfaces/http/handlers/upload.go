package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	httpmw "github.com/turtacn/shipcat-extractor/internal/interfaces/http/middleware"
	apperrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

var filenamePattern = regexp.MustCompile(`^[\w\-. ]+$`)

const maxFileSizeBytes = 50 * 1024 * 1024

// ExtractionStore is the slice of ExtractionRepository the extraction
// handlers depend on.
type ExtractionStore interface {
	Create(ctx context.Context, e *extraction.Extraction) (*extraction.Extraction, error)
	Get(ctx context.Context, id common.ID) (*extraction.Extraction, error)
	ListByRFQ(ctx context.Context, rfqID common.ID) ([]*extraction.Extraction, error)
	ListByUploader(ctx context.Context, uploaderID common.UserID) ([]*extraction.Extraction, error)
	VerifyItem(ctx context.Context, itemID, extractionID common.ID, correctedIMPA *string) (*extraction.ExtractedLineItem, error)
}

// Dispatcher kicks off stage 1 of the pipeline for a newly created
// extraction. Satisfied by *pipeline.Driver.
type Dispatcher interface {
	Dispatch(ctx context.Context, id common.ID, tenantID common.TenantID) error
}

// ExtractionHandler serves the document-to-catalog extraction lifecycle:
// upload, status, listing, and item verification.
type ExtractionHandler struct {
	store ExtractionStore
	pipe  Dispatcher
}

// NewExtractionHandler constructs an ExtractionHandler.
func NewExtractionHandler(store ExtractionStore, pipe Dispatcher) *ExtractionHandler {
	return &ExtractionHandler{store: store, pipe: pipe}
}

type createExtractionRequest struct {
	Filename      string  `json:"filename"`
	FileType      string  `json:"file_type"`
	FileSizeBytes int64   `json:"file_size_bytes"`
	RFQID         *string `json:"rfq_id,omitempty"`
	DocumentType  *string `json:"document_type,omitempty"`
}

// Create handles POST /documents/extract: validates the upload request,
// persists a PENDING Extraction, and dispatches stage 1.
func (h *ExtractionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidParam("malformed request body"))
		return
	}

	if !filenamePattern.MatchString(req.Filename) {
		writeError(w, apperrors.InvalidParam("filename contains invalid characters"))
		return
	}
	if req.FileSizeBytes <= 0 || req.FileSizeBytes > maxFileSizeBytes {
		writeError(w, apperrors.InvalidParam("file_size_bytes must be between 1 and 50 MiB"))
		return
	}

	tenantID := common.TenantID(httpmw.ContextGetTenantID(r.Context()))
	uploaderID := common.UserID(httpmw.ContextGetUserID(r.Context()))

	ext := &extraction.Extraction{
		TenantID:      tenantID,
		Filename:      req.Filename,
		FileType:      req.FileType,
		FileSizeBytes: req.FileSizeBytes,
		UploaderID:    uploaderID,
	}
	if req.RFQID != nil {
		id := common.ID(*req.RFQID)
		ext.RFQID = &id
	}
	if req.DocumentType != nil {
		dt := extraction.DocumentType(*req.DocumentType)
		ext.DocumentType = &dt
	}

	created, err := h.store.Create(r.Context(), ext)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.pipe.Dispatch(r.Context(), created.ID, tenantID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}
