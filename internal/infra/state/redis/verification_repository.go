package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Kaleub/kaleub-back/internal/repository"
)

// RedisVerificationRepository 是 VerificationRepository 接口的 Redis 实现。
// 所有 key 都带 TTL，过期即视为验证码失效。
type RedisVerificationRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisVerificationRepository 创建 RedisVerificationRepository 实例
func NewRedisVerificationRepository(client *redis.Client, keyPrefix string) *RedisVerificationRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisVerificationRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "photory:"
	}
	return &RedisVerificationRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---
func (r *RedisVerificationRepository) codeKey(email string) string {
	return fmt.Sprintf("%sverify:code:%s", r.keyPrefix, email)
}

func (r *RedisVerificationRepository) attemptsKey(email string) string {
	return fmt.Sprintf("%sverify:attempts:%s", r.keyPrefix, email)
}

func (r *RedisVerificationRepository) verifiedKey(email string) string {
	return fmt.Sprintf("%sverify:ok:%s", r.keyPrefix, email)
}

// SaveCode 覆盖写入验证码并清空失败计数
func (r *RedisVerificationRepository) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.codeKey(email), code, ttl)
	pipe.Del(ctx, r.attemptsKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to save verification code for %s: %w", email, err)
	}
	return nil
}

// GetCode 读取验证码
func (r *RedisVerificationRepository) GetCode(ctx context.Context, email string) (string, error) {
	code, err := r.client.Get(ctx, r.codeKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrCodeNotFound
		}
		return "", fmt.Errorf("redis: failed to get verification code for %s: %w", email, err)
	}
	return code, nil
}

// DeleteCode 删除验证码及失败计数
func (r *RedisVerificationRepository) DeleteCode(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, r.codeKey(email), r.attemptsKey(email)).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete verification code for %s: %w", email, err)
	}
	return nil
}

// IncrementAttempts 原子递增失败次数，并刷新计数的过期时间
func (r *RedisVerificationRepository) IncrementAttempts(ctx context.Context, email string, ttl time.Duration) (int64, error) {
	key := r.attemptsKey(email)
	pipe := r.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: failed to increment verification attempts for %s: %w", email, err)
	}
	return incrCmd.Val(), nil
}

// MarkVerified 写入已验证标记
func (r *RedisVerificationRepository) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.verifiedKey(email), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to mark %s as verified: %w", email, err)
	}
	return nil
}

// IsVerified 检查已验证标记是否存在
func (r *RedisVerificationRepository) IsVerified(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Exists(ctx, r.verifiedKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check verified marker for %s: %w", email, err)
	}
	return n > 0, nil
}

// ClearVerified 删除已验证标记
func (r *RedisVerificationRepository) ClearVerified(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, r.verifiedKey(email)).Err(); err != nil {
		return fmt.Errorf("redis: failed to clear verified marker for %s: %w", email, err)
	}
	return nil
}
