package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间 ID 查找房间
func (r *GormRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	return r.findByID(conn(ctx, r.db), id)
}

// FindByIDForUpdate 使用 SELECT ... FOR UPDATE 锁定房间行。
// SQLite 方言会忽略行锁子句，它的写事务本身就是串行的。
func (r *GormRoomRepository) FindByIDForUpdate(ctx context.Context, id uint) (*domain.Room, error) {
	return r.findByID(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormRoomRepository) findByID(db *gorm.DB, id uint) (*domain.Room, error) {
	var room domain.Room
	err := db.First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %d: %w", id, err)
	}
	return &room, nil
}

// FindByCode 实现根据房间码查找房间
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := conn(ctx, r.db).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// IsCodeExists 实现检查房间码是否存在
func (r *GormRoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// Create 实现插入新房间
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := conn(ctx, r.db).Create(room).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (code: %s): %w", room.Code, err)
	}
	return nil
}

// AdjustParticipantsCount 在数据库端完成加减，避免读改写
func (r *GormRoomRepository) AdjustParticipantsCount(ctx context.Context, roomID uint, delta int) error {
	result := conn(ctx, r.db).Model(&domain.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("participants_count", gorm.Expr("participants_count + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("gorm: adjust participants count of room %d by %d: %w", roomID, delta, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrRoomNotFound
	}
	return nil
}

// UpdateStatus 实现更新房间状态
func (r *GormRoomRepository) UpdateStatus(ctx context.Context, roomID uint, status domain.RoomStatus) error {
	return r.updateColumn(ctx, roomID, "status", status)
}

// UpdatePassword 实现更新房间密码哈希
func (r *GormRoomRepository) UpdatePassword(ctx context.Context, roomID uint, passwordHash string) error {
	return r.updateColumn(ctx, roomID, "password", passwordHash)
}

func (r *GormRoomRepository) updateColumn(ctx context.Context, roomID uint, column string, value interface{}) error {
	err := conn(ctx, r.db).Model(&domain.Room{}).Where("id = ?", roomID).Update(column, value).Error
	if err != nil {
		return fmt.Errorf("gorm: update %s of room %d: %w", column, roomID, err)
	}
	return nil
}

// FindByParticipant 实现查询用户参与的房间
func (r *GormRoomRepository) FindByParticipant(ctx context.Context, userID uint) ([]domain.Room, error) {
	var rooms []domain.Room
	err := conn(ctx, r.db).
		Joins("JOIN participations ON participations.room_id = rooms.id").
		Where("participations.user_id = ?", userID).
		Order("rooms.created_at DESC, rooms.id DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find rooms by participant %d: %w", userID, err)
	}
	return rooms, nil
}

// FindAll 实现列出全部房间
func (r *GormRoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := conn(ctx, r.db).Order("id").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("gorm: find all rooms: %w", err)
	}
	return rooms, nil
}

// ReconcileParticipantsCounts 用参与记录的实际数量修正 participants_count
func (r *GormRoomRepository) ReconcileParticipantsCounts(ctx context.Context) (int64, error) {
	const actual = "(SELECT COUNT(*) FROM participations WHERE participations.room_id = rooms.id)"
	result := conn(ctx, r.db).Exec(
		"UPDATE rooms SET participants_count = " + actual + " WHERE participants_count <> " + actual,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: reconcile participants counts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
