package db

import (
	"context"
	"database/sql"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx. Repositories take one as their
// fallback handle and resolve the effective handle per call with Conn.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is an open transaction.
type Tx interface {
	DBTX
	Commit() error
	Rollback() error
}

// Beginner starts transactions.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

// SQLBeginner adapts *sql.DB to Beginner.
type SQLBeginner struct {
	DB *sql.DB
}

// BeginTx starts a transaction on the underlying pool.
func (b SQLBeginner) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	return b.DB.BeginTx(ctx, opts)
}

type txContextKey struct{}

// WithTx returns a context carrying tx. Every repository call made with the returned context
// runs inside tx.
func WithTx(ctx context.Context, tx DBTX) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) (DBTX, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(DBTX)
	return tx, ok && tx != nil
}

// Conn returns the transaction bound to ctx, or fallback when the call runs outside one.
func Conn(ctx context.Context, fallback DBTX) DBTX {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return fallback
}
