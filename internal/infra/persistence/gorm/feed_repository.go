package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

// GormFeedRepository 是 FeedRepository 接口的 GORM 实现
type GormFeedRepository struct {
	db *gorm.DB
}

// NewGormFeedRepository 创建 GormFeedRepository 实例
func NewGormFeedRepository(db *gorm.DB) *GormFeedRepository {
	if db == nil {
		panic("database connection cannot be nil for GormFeedRepository")
	}
	return &GormFeedRepository{db: db}
}

// Create 实现插入动态
func (r *GormFeedRepository) Create(ctx context.Context, feed *domain.Feed) error {
	if err := conn(ctx, r.db).Create(feed).Error; err != nil {
		return fmt.Errorf("gorm: create feed (room: %d, user: %d): %w", feed.RoomID, feed.UserID, err)
	}
	return nil
}

// FindByID 实现根据 ID 查找动态
func (r *GormFeedRepository) FindByID(ctx context.Context, id uint) (*domain.Feed, error) {
	var feed domain.Feed
	err := conn(ctx, r.db).First(&feed, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrFeedNotFound
		}
		return nil, fmt.Errorf("gorm: find feed by id %d: %w", id, err)
	}
	return &feed, nil
}

// Update 实现更新动态的标题和内容
func (r *GormFeedRepository) Update(ctx context.Context, feed *domain.Feed) error {
	err := conn(ctx, r.db).Model(feed).Updates(map[string]interface{}{
		"title":   feed.Title,
		"content": feed.Content,
	}).Error
	if err != nil {
		return fmt.Errorf("gorm: update feed %d: %w", feed.ID, err)
	}
	return nil
}

// Delete 实现删除动态
func (r *GormFeedRepository) Delete(ctx context.Context, id uint) error {
	result := conn(ctx, r.db).Delete(&domain.Feed{}, id)
	if result.Error != nil {
		return fmt.Errorf("gorm: delete feed %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrFeedNotFound
	}
	return nil
}

// FindByRoom 实现分页查询房间动态
func (r *GormFeedRepository) FindByRoom(ctx context.Context, roomID uint, offset, limit int) ([]domain.Feed, int64, error) {
	var total int64
	db := conn(ctx, r.db)
	if err := db.Model(&domain.Feed{}).Where("room_id = ?", roomID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count feeds of room %d: %w", roomID, err)
	}
	var feeds []domain.Feed
	err := db.Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&feeds).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: find feeds of room %d: %w", roomID, err)
	}
	return feeds, total, nil
}
