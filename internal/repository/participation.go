package repository

import (
	"context"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// ParticipationRepository 维护用户与房间的多对多关系。
type ParticipationRepository interface {
	// Create 插入参与记录。(user, room) 已存在时返回 ErrDuplicateEntry。
	Create(ctx context.Context, participation *domain.Participation) error

	Exists(ctx context.Context, userID, roomID uint) (bool, error)

	// Delete 删除参与记录，不存在时返回 ErrParticipationNotFound。
	Delete(ctx context.Context, userID, roomID uint) error

	CountByRoom(ctx context.Context, roomID uint) (int64, error)

	// FindUsersByRoom 返回房间内的所有用户，按加入顺序排列。
	FindUsersByRoom(ctx context.Context, roomID uint) ([]domain.User, error)
}
