package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// txKey 是事务在 context 中的键
type txKey struct{}

// GormTxManager 是 TxManager 接口的 GORM 实现
type GormTxManager struct {
	db *gorm.DB
}

// NewGormTxManager 创建 GormTxManager 实例
func NewGormTxManager(db *gorm.DB) *GormTxManager {
	if db == nil {
		panic("database connection cannot be nil for GormTxManager")
	}
	return &GormTxManager{db: db}
}

// WithinTransaction 开启事务并把它放入 ctx。
// 如果 ctx 中已有事务，则直接复用，不嵌套新的事务。
func (m *GormTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	if err != nil {
		return fmt.Errorf("gorm: transaction: %w", err)
	}
	return nil
}

// conn 返回 ctx 中的事务；没有事务时返回普通连接
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
