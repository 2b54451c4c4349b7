package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// VerificationRepository 是 repository.VerificationRepository 的 testify mock
type VerificationRepository struct {
	mock.Mock
}

func (m *VerificationRepository) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	args := m.Called(ctx, email, code, ttl)
	return args.Error(0)
}

func (m *VerificationRepository) GetCode(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *VerificationRepository) DeleteCode(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *VerificationRepository) IncrementAttempts(ctx context.Context, email string, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, email, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *VerificationRepository) MarkVerified(ctx context.Context, email string, ttl time.Duration) error {
	args := m.Called(ctx, email, ttl)
	return args.Error(0)
}

func (m *VerificationRepository) IsVerified(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *VerificationRepository) ClearVerified(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
