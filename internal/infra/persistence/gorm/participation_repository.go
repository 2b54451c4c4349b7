package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

// GormParticipationRepository 是 ParticipationRepository 接口的 GORM 实现
type GormParticipationRepository struct {
	db *gorm.DB
}

// NewGormParticipationRepository 创建 GormParticipationRepository 实例
func NewGormParticipationRepository(db *gorm.DB) *GormParticipationRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipationRepository")
	}
	return &GormParticipationRepository{db: db}
}

// Create 实现插入参与记录，唯一索引冲突映射为 ErrDuplicateEntry
func (r *GormParticipationRepository) Create(ctx context.Context, participation *domain.Participation) error {
	if err := conn(ctx, r.db).Create(participation).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create participation (user: %d, room: %d): %w",
			participation.UserID, participation.RoomID, err)
	}
	return nil
}

// Exists 实现检查参与记录是否存在
func (r *GormParticipationRepository) Exists(ctx context.Context, userID, roomID uint) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Participation{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count participation (user: %d, room: %d): %w", userID, roomID, err)
	}
	return count > 0, nil
}

// Delete 实现删除参与记录
func (r *GormParticipationRepository) Delete(ctx context.Context, userID, roomID uint) error {
	result := conn(ctx, r.db).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Delete(&domain.Participation{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete participation (user: %d, room: %d): %w", userID, roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrParticipationNotFound
	}
	return nil
}

// CountByRoom 实现统计房间的参与记录
func (r *GormParticipationRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Participation{}).Where("room_id = ?", roomID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count participations of room %d: %w", roomID, err)
	}
	return count, nil
}

// FindUsersByRoom 实现查询房间成员
func (r *GormParticipationRepository) FindUsersByRoom(ctx context.Context, roomID uint) ([]domain.User, error) {
	var users []domain.User
	err := conn(ctx, r.db).
		Joins("JOIN participations ON participations.user_id = users.id").
		Where("participations.room_id = ?", roomID).
		Order("participations.id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find users of room %d: %w", roomID, err)
	}
	return users, nil
}
