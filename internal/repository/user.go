package repository

import (
	"context"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByEmail 根据邮箱查找用户，不存在时返回 ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户。
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// ExistsByEmail 检查邮箱是否已被注册。
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Save 创建或更新用户。违反邮箱唯一约束时返回 ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error

	// FindAll 按 ID 顺序列出用户，供管理工具使用。
	FindAll(ctx context.Context) ([]domain.User, error)
}
