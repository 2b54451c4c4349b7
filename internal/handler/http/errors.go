package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/middleware"
	"github.com/Kaleub/kaleub-back/internal/service"
)

// statusByError 是业务错误到 HTTP 状态码的映射
var statusByError = []struct {
	err    error
	status int
}{
	{service.ErrDuplicateEmail, http.StatusConflict},
	{service.ErrAlreadyInRoom, http.StatusConflict},
	{service.ErrExceedCapacity, http.StatusConflict},
	{service.ErrNotAlone, http.StatusConflict},
	{service.ErrOwnerCannotLeave, http.StatusConflict},
	{service.ErrAlertLeaveRoom, http.StatusConflict},
	{service.ErrAlreadyNotInRoom, http.StatusConflict},
	{service.ErrRoomDisabled, http.StatusConflict},
	{service.ErrInvalidOrExpiredCode, http.StatusBadRequest},
	{service.ErrEmailNotVerified, http.StatusBadRequest},
	{service.ErrInvalidPassword, http.StatusBadRequest},
	{service.ErrInvalidFeed, http.StatusBadRequest},
	{service.ErrAuthenticationFailed, http.StatusUnauthorized},
	{service.ErrNotOwner, http.StatusForbidden},
	{service.ErrNotParticipant, http.StatusForbidden},
	{service.ErrNotAuthor, http.StatusForbidden},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrRoomNotFound, http.StatusNotFound},
	{service.ErrFeedNotFound, http.StatusNotFound},
	{service.ErrMailDelivery, http.StatusServiceUnavailable},
}

// StatusForError 返回错误对应的 HTTP 状态码，未知错误为 500
func StatusForError(err error) int {
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// HandleServiceError 把 Service 返回的错误写成响应
func HandleServiceError(c *gin.Context, err error) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled internal server error")
		ErrorResponse(c, status, "An unexpected error occurred")
		return
	}
	ErrorResponse(c, status, err.Error())
}

// bindError 写出请求格式错误
func bindError(c *gin.Context, handler string, err error) {
	logrus.WithError(err).Warnf("Handler.%s: Invalid input format", handler)
	ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
}

// requireEmail 取出认证用户的邮箱，缺失时写出 401
func requireEmail(c *gin.Context) (string, bool) {
	email, ok := middleware.CurrentEmail(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("Email not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
	}
	return email, ok
}
