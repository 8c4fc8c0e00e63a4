package repo

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// Base is embedded by SQL repositories. Calls made with a context returned by
// InTx join that transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the transaction carried by ctx, or the root connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return b.db.WithContext(ctx)
}

// InTx runs fn inside a transaction. Nested calls reuse the outer transaction
// so the work commits or rolls back as one unit.
func (b Base) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}
