package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// queryExecutor abstracts *pgxpool.Pool and pgx.Tx so repository methods can
// run either directly against the pool or inside a caller-supplied
// transaction without duplicating query logic.
type queryExecutor interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
}
