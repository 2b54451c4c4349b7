package dto

import (
	"time"

	"github.com/Kaleub/kaleub-back/internal/domain"
)

// EmailRequest 用于邮箱检查和发送验证码
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyEmailRequest 提交收到的验证码
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// SignUpRequest 为已验证的邮箱创建账号
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// SignInRequest 登录
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse 登录成功后返回的 JWT
type TokenResponse struct {
	Token string `json:"token"`
}

// UserResponse 是对外展示的用户信息，不含密码
type UserResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// AuthCheckResponse 是令牌检查的结果
type AuthCheckResponse struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
}
