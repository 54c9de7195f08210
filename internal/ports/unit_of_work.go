package ports

import "context"

// Tx is an opaque transaction handle for repositories.
// Infrastructure controls the concrete type (*gorm.DB for the sqlite adapter).
type Tx interface{}

// UnitOfWork defines a transaction boundary for catalog ingestion.
// Returning an error from fn rolls back, returning nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context; nil when outside a transaction.
func TxFromContext(ctx context.Context) Tx {
	if ctx == nil {
		return nil
	}
	return ctx.Value(txKey{})
}
