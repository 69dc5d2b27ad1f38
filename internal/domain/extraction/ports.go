package extraction

import (
	"context"

	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// FailureKind classifies an adapter failure so callers can decide whether to
// retry within the stage budget or fail permanently.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// AdapterFailure is the typed error returned by OCR, Embedder, and LLM
// adapters. It is never a bare error so the caller can branch on Kind
// without string matching.
type AdapterFailure struct {
	Kind    FailureKind
	Message string
}

func (f *AdapterFailure) Error() string { return f.Message }

// IsTransient reports whether err is an AdapterFailure of kind transient.
func IsTransient(err error) bool {
	af, ok := err.(*AdapterFailure)
	return ok && af.Kind == FailureTransient
}

// CatalogProduct is one row of the external Catalog lookup.
type CatalogProduct struct {
	IMPACode string
	ProductID common.ID
	Name      string
}

// CatalogMatch is one row of a Catalog nearest-neighbor search, ordered by
// descending similarity.
type CatalogMatch struct {
	IMPACode   string
	ProductID  common.ID
	Name       string
	Similarity float64
}

// Catalog is the read-only external product lookup the matcher consults.
// It is backed by Postgres for exact-code lookup and Milvus for vector
// search in the production adapter; tests use an in-memory fake.
type Catalog interface {
	// LookupByCode returns the product for an exact IMPA code, or
	// (nil, nil) if the code is not present in the catalog.
	LookupByCode(ctx context.Context, impaCode string) (*CatalogProduct, error)

	// NearestByVector returns up to topK products whose embedding has
	// cosine similarity above floor with the query vector, ordered by
	// descending similarity.
	NearestByVector(ctx context.Context, vector []float32, topK int, floor float64) ([]CatalogMatch, error)
}

// OCRAdapter performs the one-shot document parse of stage 1.
type OCRAdapter interface {
	// Parse returns a RawExtraction for the given file reference, or an
	// AdapterFailure. When no external OCR is configured implementations
	// return a degraded RawExtraction (empty Lines, Status set) rather
	// than an error.
	Parse(ctx context.Context, fileRef string) (*RawExtraction, error)
}

// EmbedderAdapter produces a fixed-dimension embedding for normalized text.
type EmbedderAdapter interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMCandidate is one entry of the candidate list offered to the LLM for
// disambiguation.
type LLMCandidate struct {
	IMPACode   string
	Name       string
	Similarity float64
}

// LLMDecision is the parsed result of an LLM disambiguation call.
type LLMDecision struct {
	IMPACode   string
	Confidence float64
}

// LLMAdapter resolves ambiguous candidate sets via an external language
// model.
type LLMAdapter interface {
	Disambiguate(ctx context.Context, rawText string, candidates []LLMCandidate) (*LLMDecision, error)
}
