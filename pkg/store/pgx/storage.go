package pgx

import (
	"context"

	"github.com/go-playground/validator"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Storage implements the store interfaces (TripleStore, AnnotationLedger,
// AssociationStore, CaseStore) on PostgreSQL. It works over a pool, a single
// connection or an open transaction, so callers composing larger atomic
// operations can wrap a Storage around their own pgx.Tx.
type Storage struct {
	conn pgxIConn
}

var validate = validator.New()

// New creates a Storage over an existing pgx connection, pool or transaction.
func New(conn pgxIConn) *Storage {
	return &Storage{conn: conn}
}
