package repository

import (
	"context"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// FeedRepository 定义了照片动态的存储和检索操作。
type FeedRepository interface {
	Create(ctx context.Context, feed *domain.Feed) error
	FindByID(ctx context.Context, id uint) (*domain.Feed, error)
	// Update 只更新标题和内容。
	Update(ctx context.Context, feed *domain.Feed) error
	Delete(ctx context.Context, id uint) error
	// FindByRoom 分页返回房间内的动态（按创建时间倒序）以及总数。
	FindByRoom(ctx context.Context, roomID uint, offset, limit int) ([]domain.Feed, int64, error)
}
