package repository

import (
	"context"
	"time"
)

// VerificationRepository 保存邮箱验证过程中的短期状态，通常由 Redis 实现。
type VerificationRepository interface {
	// SaveCode 保存验证码，覆盖同一邮箱之前未使用的验证码，并重置失败次数。
	SaveCode(ctx context.Context, email, code string, ttl time.Duration) error

	// GetCode 读取验证码，不存在或已过期时返回 ErrCodeNotFound。
	GetCode(ctx context.Context, email string) (string, error)

	DeleteCode(ctx context.Context, email string) error

	// IncrementAttempts 记录一次失败的确认并返回累计次数。
	IncrementAttempts(ctx context.Context, email string, ttl time.Duration) (int64, error)

	// MarkVerified 标记邮箱已完成验证，注册时消费。
	MarkVerified(ctx context.Context, email string, ttl time.Duration) error

	IsVerified(ctx context.Context, email string) (bool, error)

	ClearVerified(ctx context.Context, email string) error
}
