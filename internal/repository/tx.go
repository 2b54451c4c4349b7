package repository

import "context"

// TxManager 在一个事务中执行 fn。
// fn 收到的 ctx 携带事务，基于它调用的仓库方法都会加入该事务；
// fn 返回错误时整个事务回滚。
type TxManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
