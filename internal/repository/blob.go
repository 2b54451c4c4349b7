package repository

import (
	"context"
	"io"
)

// BlobStore 保存图片等二进制内容，返回可用于后续访问的 key。
type BlobStore interface {
	// Put 写入内容，filename 仅用于推断扩展名。
	Put(ctx context.Context, filename string, content io.Reader) (string, error)

	// Delete 删除内容，key 不存在时返回 ErrBlobNotFound。
	Delete(ctx context.Context, key string) error

	// URL 返回 key 对应的公开访问地址。
	URL(key string) string
}
