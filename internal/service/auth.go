package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kaleub/kaleub-back/internal/domain"
	"github.com/Kaleub/kaleub-back/internal/repository"
)

const (
	verificationCodeLength = 6
	// 连续输错达到该次数后作废当前验证码
	maxVerificationAttempts = 5
)

// VerificationMailer 负责把验证码送达邮箱
type VerificationMailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// AuthOptions 是 AuthService 的可选参数，零值字段使用默认值
type AuthOptions struct {
	CodeTTL     time.Duration // 验证码有效期，默认 5 分钟
	VerifiedTTL time.Duration // 验证通过后允许注册的时长，默认 30 分钟
}

// AuthService 负责邮箱验证、注册和登录。
type AuthService struct {
	userRepo         repository.UserRepository
	verificationRepo repository.VerificationRepository
	mailer           VerificationMailer
	jwtSecret        []byte
	jwtExpiry        time.Duration
	codeTTL          time.Duration
	verifiedTTL      time.Duration
}

// NewAuthService 创建 AuthService 实例。
func NewAuthService(
	userRepo repository.UserRepository,
	verificationRepo repository.VerificationRepository,
	mailer VerificationMailer,
	jwtSecretKey string,
	jwtExpiryHours int,
	opts AuthOptions,
) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if verificationRepo == nil {
		panic("VerificationRepository cannot be nil for AuthService")
	}
	if mailer == nil {
		panic("VerificationMailer cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 5 * time.Minute
	}
	if opts.VerifiedTTL <= 0 {
		opts.VerifiedTTL = 30 * time.Minute
	}
	return &AuthService{
		userRepo:         userRepo,
		verificationRepo: verificationRepo,
		mailer:           mailer,
		jwtSecret:        []byte(jwtSecretKey),
		jwtExpiry:        time.Duration(jwtExpiryHours) * time.Hour,
		codeTTL:          opts.CodeTTL,
		verifiedTTL:      opts.VerifiedTTL,
	}, nil
}

// ValidateEmail 检查邮箱是否可以用于注册，不修改任何状态。
func (s *AuthService) ValidateEmail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check email existence")
		return ErrInternalServer
	}
	if exists {
		logCtx.Warn("Email validation failed: already registered")
		return ErrDuplicateEmail
	}
	return nil
}

// SendVerificationCode 生成验证码并发送到邮箱。
// 只有投递成功后才会保存验证码，因此投递失败不会影响之前的验证状态。
func (s *AuthService) SendVerificationCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	code, err := generateVerificationCode()
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate verification code")
		return ErrInternalServer
	}

	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		logCtx.WithError(err).Error("Failed to dispatch verification mail")
		return ErrMailDelivery
	}

	if err := s.verificationRepo.SaveCode(ctx, email, code, s.codeTTL); err != nil {
		logCtx.WithError(err).Error("Failed to store verification code")
		return ErrInternalServer
	}

	logCtx.Info("Verification code sent")
	return nil
}

// ConfirmVerificationCode 校验验证码，成功后标记邮箱已验证。
func (s *AuthService) ConfirmVerificationCode(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	stored, err := s.verificationRepo.GetCode(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			logCtx.Warn("Verification failed: no pending code")
			return ErrInvalidOrExpiredCode
		}
		logCtx.WithError(err).Error("Failed to load verification code")
		return ErrInternalServer
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		attempts, err := s.verificationRepo.IncrementAttempts(ctx, email, s.codeTTL)
		if err != nil {
			logCtx.WithError(err).Error("Failed to record verification attempt")
			return ErrInternalServer
		}
		logCtx = logCtx.WithField("attempts", attempts)
		if attempts >= maxVerificationAttempts {
			if err := s.verificationRepo.DeleteCode(ctx, email); err != nil {
				logCtx.WithError(err).Error("Failed to discard verification code after too many attempts")
			} else {
				logCtx.Warn("Verification code discarded after too many attempts")
			}
		}
		logCtx.Warn("Verification failed: code mismatch")
		return ErrInvalidOrExpiredCode
	}

	if err := s.verificationRepo.MarkVerified(ctx, email, s.verifiedTTL); err != nil {
		logCtx.WithError(err).Error("Failed to mark email as verified")
		return ErrInternalServer
	}
	if err := s.verificationRepo.DeleteCode(ctx, email); err != nil {
		// 验证码会自然过期，这里只记录
		logCtx.WithError(err).Warn("Failed to delete used verification code")
	}

	logCtx.Info("Email verified")
	return nil
}

// CreateUser 为已验证的邮箱创建账号，并消费验证状态。
func (s *AuthService) CreateUser(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	verified, err := s.verificationRepo.IsVerified(ctx, email)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check verified marker")
		return nil, ErrInternalServer
	}
	if !verified {
		logCtx.Warn("Signup rejected: email not verified")
		return nil, ErrEmailNotVerified
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check email existence")
		return nil, ErrInternalServer
	}
	if exists {
		logCtx.Warn("Signup rejected: email already registered")
		return nil, ErrDuplicateEmail
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during signup")
		return nil, ErrInternalServer
	}

	user := &domain.User{
		Email:    email,
		Password: hashedPassword,
		Role:     domain.RoleUser,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 检查之后、插入之前被并发注册
			logCtx.WithError(err).Warn("Signup rejected: email registered concurrently")
			return nil, ErrDuplicateEmail
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	if err := s.verificationRepo.ClearVerified(ctx, email); err != nil {
		logCtx.WithError(err).Warn("Failed to clear verified marker after signup")
	}

	logCtx.WithField("user_id", user.ID).Info("User created successfully")
	user.Password = ""
	return user, nil
}

// SignIn 校验邮箱和密码，成功后返回 JWT。
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	logCtx := logrus.WithField("email", email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("Sign-in failed: user not found")
			return "", ErrAuthenticationFailed
		}
		logCtx.WithError(err).Error("Sign-in failed: error finding user")
		return "", ErrInternalServer
	}

	if !checkPassword(password, user.Password) {
		logCtx.Warn("Sign-in failed: invalid password")
		return "", ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during sign-in")
		return "", ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User signed in successfully")
	return token, nil
}

// --- 私有辅助函数 ---

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证密码是否与哈希匹配，比较过程为常数时间
func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// generateJWT 为用户生成 JWT，同时携带 user_id 和 email
func (s *AuthService) generateJWT(user *domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// generateVerificationCode 生成定长数字验证码
func generateVerificationCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < verificationCodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return fmt.Sprintf("%0*d", verificationCodeLength, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
