package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// VerificationMailer 是 service.VerificationMailer 的 testify mock
type VerificationMailer struct {
	mock.Mock
}

func (m *VerificationMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}
