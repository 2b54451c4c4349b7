package repository

import (
	"context"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// RoomRepository 定义了房间数据的存储和检索操作。
// 带 ForUpdate 的方法必须在 TxManager 开启的事务中调用。
type RoomRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Room, error)

	// FindByIDForUpdate 读取房间并对该行加排他锁，直到事务结束。
	FindByIDForUpdate(ctx context.Context, id uint) (*domain.Room, error)

	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// IsCodeExists 检查房间码是否已被占用。
	IsCodeExists(ctx context.Context, code string) (bool, error)

	// Create 插入新房间。房间码冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// AdjustParticipantsCount 原子地将参与人数加上 delta。
	AdjustParticipantsCount(ctx context.Context, roomID uint, delta int) error

	UpdateStatus(ctx context.Context, roomID uint, status domain.RoomStatus) error

	UpdatePassword(ctx context.Context, roomID uint, passwordHash string) error

	// FindByParticipant 返回用户参与的所有房间，按创建时间倒序。
	FindByParticipant(ctx context.Context, userID uint) ([]domain.Room, error)

	// FindAll 列出全部房间，供管理工具使用。
	FindAll(ctx context.Context) ([]domain.Room, error)

	// ReconcileParticipantsCounts 用参与记录的实际行数修正所有偏离的 participants_count，
	// 返回被修正的房间数量。
	ReconcileParticipantsCounts(ctx context.Context) (int64, error)
}
