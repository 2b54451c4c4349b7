package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/dto"
	"github.com/Kaleub/kaleub-back/internal/middleware"
	"github.com/Kaleub/kaleub-back/internal/service"
)

// AuthHandler 封装了邮箱验证、注册和登录的 HTTP 处理逻辑
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建 AuthHandler 实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// CheckEmail 处理 POST /v1/auth/signup/email/check
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "CheckEmail", err)
		return
	}
	if err := h.authService.ValidateEmail(c.Request.Context(), req.Email); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Email is available", nil)
}

// SendVerificationCode 处理 POST /v1/auth/signup/email
func (h *AuthHandler) SendVerificationCode(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "SendVerificationCode", err)
		return
	}
	if err := h.authService.SendVerificationCode(c.Request.Context(), req.Email); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Verification code sent", nil)
}

// VerifyEmail 处理 POST /v1/auth/signup/email/complete
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "VerifyEmail", err)
		return
	}
	if err := h.authService.ConfirmVerificationCode(c.Request.Context(), req.Email, req.Code); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Email verified", nil)
}

// SignUp 处理 POST /v1/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req dto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "SignUp", err)
		return
	}
	user, err := h.authService.CreateUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithField("user_id", user.ID).Info("Handler.SignUp: User registered successfully")
	SuccessResponse(c, http.StatusCreated, "User registered successfully", dto.NewUserResponse(user))
}

// SignIn 处理 POST /v1/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req dto.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "SignIn", err)
		return
	}
	token, err := h.authService.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Login successful", dto.TokenResponse{Token: token})
}

// Check 处理 GET /v1/auth/check，令牌已由 Auth 中间件验证
func (h *AuthHandler) Check(c *gin.Context) {
	email, ok := requireEmail(c)
	if !ok {
		return
	}
	userID, _ := middleware.CurrentUserID(c)
	SuccessResponse(c, http.StatusOK, "Token is valid", dto.AuthCheckResponse{UserID: userID, Email: email})
}
