// Package contextx 在 context 中传递事务句柄
package contextx

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx 返回携带事务句柄的 context
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// GetTx 取出 context 中的事务句柄，不存在时返回 nil
func GetTx(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}
