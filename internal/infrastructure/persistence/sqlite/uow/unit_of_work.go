package uow

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"shelfd/internal/errs"
	"shelfd/internal/ports"
)

// UnitOfWork implements ports.UnitOfWork with gorm. Repositories called with the
// ctx handed to fn run inside the same transaction.
type UnitOfWork struct {
	db *gorm.DB
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if ports.TxFromContext(ctx) != nil {
		// Already inside a transaction: join it.
		return fn(ctx)
	}

	if err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ports.WithTxContext(ctx, tx))
	}); err != nil {
		return errs.Wrap(err, "run transaction")
	}
	return nil
}
