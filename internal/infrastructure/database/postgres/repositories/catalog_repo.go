package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appErrors "github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// CatalogProduct is the exact row shape for an IMPA catalog entry. It
// mirrors extraction.CatalogProduct; the Catalog adapter
// (internal/infrastructure/catalog) maps between the two when it composes
// this repository with a Milvus lookup.
type CatalogProduct struct {
	ID        common.ID
	IMPACode  string
	Name      string
	Description string
}

// CatalogRepository is the Postgres-backed exact-code half of the Catalog.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository constructs a CatalogRepository backed by pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// LookupByCode returns the product for an exact IMPA code, or (nil, nil) if
// the code is not present in the catalog. Lookup is case-insensitive on the
// stored code since uploaded documents vary in casing.
func (r *CatalogRepository) LookupByCode(ctx context.Context, impaCode string) (*CatalogProduct, error) {
	const q = `
		SELECT id, impa_code, name, description
		FROM catalog_products
		WHERE upper(impa_code) = upper($1)`

	var p CatalogProduct
	err := r.pool.QueryRow(ctx, q, strings.TrimSpace(impaCode)).Scan(&p.ID, &p.IMPACode, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeCatalogLookupError, "failed to look up catalog product by code")
	}
	return &p, nil
}

// GetByIDs loads catalog rows for a set of product IDs, used to hydrate the
// names and descriptions of Milvus vector-search hits (which carry only the
// product_id and impa_code payload fields).
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []common.ID) (map[common.ID]*CatalogProduct, error) {
	if len(ids) == 0 {
		return map[common.ID]*CatalogProduct{}, nil
	}
	const q = `
		SELECT id, impa_code, name, description
		FROM catalog_products
		WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeCatalogLookupError, "failed to batch-load catalog products")
	}
	defer rows.Close()

	out := make(map[common.ID]*CatalogProduct, len(ids))
	for rows.Next() {
		var p CatalogProduct
		if err := rows.Scan(&p.ID, &p.IMPACode, &p.Name, &p.Description); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeCatalogLookupError, "failed to scan catalog product")
		}
		out[p.ID] = &p
	}
	return out, rows.Err()
}
