package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with the GORM transaction that owns the
// current unit of work. Repositories never open their own transactions; they
// operate on whatever Tx they are handed.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB returns the transaction handle bound to the request context.
func (c Context) DB() *gorm.DB {
	if c.Tx == nil {
		return nil
	}
	if c.Ctx != nil {
		return c.Tx.WithContext(c.Ctx)
	}
	return c.Tx
}
