package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Kaleub/kaleub-back/internal/middleware"
	"github.com/Kaleub/kaleub-back/internal/repository"
	"github.com/Kaleub/kaleub-back/internal/repository/mocks"
	"github.com/Kaleub/kaleub-back/internal/service"
)

const testSecret = "handler-test-secret"

type authHandlerFixture struct {
	userRepo   *mocks.UserRepository
	verifyRepo *mocks.VerificationRepository
	mailer     *mocks.VerificationMailer
	router     *gin.Engine
}

func newAuthHandlerFixture(t *testing.T) *authHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &authHandlerFixture{
		userRepo:   new(mocks.UserRepository),
		verifyRepo: new(mocks.VerificationRepository),
		mailer:     new(mocks.VerificationMailer),
	}
	svc, err := service.NewAuthService(f.userRepo, f.verifyRepo, f.mailer, testSecret, 1, service.AuthOptions{})
	require.NoError(t, err)
	h := NewAuthHandler(svc)

	r := gin.New()
	auth := r.Group("/v1/auth")
	auth.POST("/signup/email/check", h.CheckEmail)
	auth.POST("/signup/email", h.SendVerificationCode)
	auth.POST("/signup/email/complete", h.VerifyEmail)
	auth.POST("/signup", h.SignUp)
	auth.POST("/signin", h.SignIn)
	auth.GET("/check", middleware.Auth(testSecret), h.Check)
	f.router = r
	return f
}

func (f *authHandlerFixture) do(t *testing.T, method, path string, body interface{}, header map[string]string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "响应应为统一格式: %s", w.Body.String())
	assert.Equal(t, w.Code, env.Status)
	return w, env
}

func TestAuthHandler_CheckEmail(t *testing.T) {
	f := newAuthHandlerFixture(t)
	f.userRepo.On("ExistsByEmail", mock.Anything, "taken@example.com").Return(true, nil).Once()
	f.userRepo.On("ExistsByEmail", mock.Anything, "free@example.com").Return(false, nil).Once()

	w, _ := f.do(t, http.MethodPost, "/v1/auth/signup/email/check", map[string]string{"email": "taken@example.com"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, http.MethodPost, "/v1/auth/signup/email/check", map[string]string{"email": "free@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodPost, "/v1/auth/signup/email/check", map[string]string{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.userRepo.AssertExpectations(t)
}

func TestAuthHandler_SendVerificationCode_MailFailure(t *testing.T) {
	f := newAuthHandlerFixture(t)
	f.mailer.On("SendVerificationCode", mock.Anything, "new@example.com", mock.Anything).Return(errors.New("queue down")).Once()

	w, env := f.do(t, http.MethodPost, "/v1/auth/signup/email", map[string]string{"email": "new@example.com"}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, service.ErrMailDelivery.Error(), env.Message)
	f.mailer.AssertExpectations(t)
}

func TestAuthHandler_VerifyEmail_Expired(t *testing.T) {
	f := newAuthHandlerFixture(t)
	f.verifyRepo.On("GetCode", mock.Anything, "new@example.com").Return("", repository.ErrCodeNotFound).Once()

	w, _ := f.do(t, http.MethodPost, "/v1/auth/signup/email/complete",
		map[string]string{"email": "new@example.com", "code": "123456"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	f.verifyRepo.AssertExpectations(t)
}

func TestAuthHandler_SignUp_NotVerified(t *testing.T) {
	f := newAuthHandlerFixture(t)
	f.verifyRepo.On("IsVerified", mock.Anything, "new@example.com").Return(false, nil).Once()

	w, env := f.do(t, http.MethodPost, "/v1/auth/signup",
		map[string]string{"email": "new@example.com", "password": "secret123"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.ErrEmailNotVerified.Error(), env.Message)
}

func TestAuthHandler_SignInAndCheck(t *testing.T) {
	f := newAuthHandlerFixture(t)
	f.userRepo.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrUserNotFound).Once()

	w, _ := f.do(t, http.MethodPost, "/v1/auth/signin",
		map[string]string{"email": "ghost@example.com", "password": "pw"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = f.do(t, http.MethodGet, "/v1/auth/check", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "缺少令牌时应被中间件拦截")
}

func TestHandleServiceError_HidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())

	HandleServiceError(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
