// Package catalog composes the Postgres exact-code repository and the
// Milvus vector searcher into the single extraction.Catalog port the
// matching cascade depends on.
package catalog

import (
	"context"

	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/search/milvus"
	"github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

const (
	collectionName  = "catalog_products"
	vectorFieldName = "description_vector"
)

// ExactLookup is the slice of repositories.CatalogRepository the adapter
// needs for stage M1's regex-matched-code lookup.
type ExactLookup interface {
	LookupByCode(ctx context.Context, impaCode string) (*repositories.CatalogProduct, error)
	GetByIDs(ctx context.Context, ids []common.ID) (map[common.ID]*repositories.CatalogProduct, error)
}

// VectorSearcher is the slice of milvus.Searcher the adapter needs for
// stage M2's nearest-neighbor search.
type VectorSearcher interface {
	Search(ctx context.Context, req common.VectorSearchRequest) (*common.VectorSearchResult, error)
}

// Adapter implements extraction.Catalog over a Postgres exact-code table
// and a Milvus description-vector collection.
type Adapter struct {
	exact  ExactLookup
	vector VectorSearcher
	log    logging.Logger
}

// NewAdapter constructs an Adapter.
func NewAdapter(exact ExactLookup, vector VectorSearcher, log logging.Logger) *Adapter {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Adapter{exact: exact, vector: vector, log: log}
}

var _ extraction.Catalog = (*Adapter)(nil)

// LookupByCode satisfies extraction.Catalog via the Postgres exact-code table.
func (a *Adapter) LookupByCode(ctx context.Context, impaCode string) (*extraction.CatalogProduct, error) {
	p, err := a.exact.LookupByCode(ctx, impaCode)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return &extraction.CatalogProduct{IMPACode: p.IMPACode, ProductID: p.ID, Name: p.Name}, nil
}

// NearestByVector satisfies extraction.Catalog via a Milvus cosine search
// against the catalog_products description_vector field, hydrated with
// product names from Postgres.
func (a *Adapter) NearestByVector(ctx context.Context, vector []float32, topK int, floor float64) ([]extraction.CatalogMatch, error) {
	res, err := a.vector.Search(ctx, common.VectorSearchRequest{
		CollectionName:  collectionName,
		VectorFieldName: vectorFieldName,
		Vectors:         [][]float32{vector},
		TopK:            topK,
		OutputFields:    []string{"product_id", "impa_code"},
		MetricType:      "COSINE",
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCatalogLookupError, "catalog vector search failed")
	}
	if len(res.Results) == 0 {
		return nil, nil
	}

	hits := res.Results[0]
	ids := make([]common.ID, 0, len(hits))
	for _, h := range hits {
		if pid, ok := h.Fields["product_id"].(string); ok {
			ids = append(ids, common.ID(pid))
		}
	}
	products, err := a.exact.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	matches := make([]extraction.CatalogMatch, 0, len(hits))
	for _, h := range hits {
		if float64(h.Score) < floor {
			continue
		}
		pid, _ := h.Fields["product_id"].(string)
		code, _ := h.Fields["impa_code"].(string)
		name := code
		if p, ok := products[common.ID(pid)]; ok {
			name = p.Name
		}
		matches = append(matches, extraction.CatalogMatch{
			IMPACode:   code,
			ProductID:  common.ID(pid),
			Name:       name,
			Similarity: float64(h.Score),
		})
	}
	return matches, nil
}

// EnsureSchema creates and loads the catalog_products collection, building
// a HNSW cosine index on the description vector, if it does not already
// exist. It is idempotent and safe to call on every worker startup.
func EnsureSchema(ctx context.Context, mgr *milvus.CollectionManager, dimensions int) error {
	schema := milvus.CatalogVectorSchema(dimensions)
	return mgr.EnsureCollection(ctx, schema, []common.IndexConfig{
		{FieldName: vectorFieldName, IndexType: "HNSW", MetricType: "COSINE"},
	})
}
