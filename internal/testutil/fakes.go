// Package testutil provides in-memory fakes for the extraction pipeline's
// external adapter ports, used by domain and application tests in place of
// real OCR, embedding, LLM, and catalog services.
package testutil

import (
	"context"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// FakeCatalog is an in-memory extraction.Catalog backed by caller-supplied
// maps and vector search results.
type FakeCatalog struct {
	ByCode  map[string]extraction.CatalogProduct
	Nearest []extraction.CatalogMatch

	LookupErr error
	SearchErr error
}

// NewFakeCatalog returns an empty FakeCatalog ready for population.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{ByCode: make(map[string]extraction.CatalogProduct)}
}

// AddProduct registers a product reachable by exact code lookup.
func (f *FakeCatalog) AddProduct(code string, productID common.ID, name string) {
	f.ByCode[code] = extraction.CatalogProduct{IMPACode: code, ProductID: productID, Name: name}
}

func (f *FakeCatalog) LookupByCode(_ context.Context, impaCode string) (*extraction.CatalogProduct, error) {
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	p, ok := f.ByCode[impaCode]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *FakeCatalog) NearestByVector(_ context.Context, _ []float32, topK int, floor float64) ([]extraction.CatalogMatch, error) {
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	var out []extraction.CatalogMatch
	for _, m := range f.Nearest {
		if m.Similarity > floor {
			out = append(out, m)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// FakeEmbedder returns a fixed vector (or error) regardless of input text.
type FakeEmbedder struct {
	Vector []float32
	Err    error
}

func (f *FakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Vector, nil
}

// FakeLLM returns a fixed decision (or error) regardless of input.
type FakeLLM struct {
	Decision *extraction.LLMDecision
	Err      error
}

func (f *FakeLLM) Disambiguate(_ context.Context, _ string, _ []extraction.LLMCandidate) (*extraction.LLMDecision, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Decision, nil
}

// FakeOCR returns a fixed RawExtraction (or error) regardless of the file
// reference.
type FakeOCR struct {
	Result *extraction.RawExtraction
	Err    error
}

func (f *FakeOCR) Parse(_ context.Context, _ string) (*extraction.RawExtraction, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}
