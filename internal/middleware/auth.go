package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// Gin 上下文中保存认证信息的键
const (
	ContextUserIDKey = "user_id"
	ContextEmailKey  = "email"
)

// accessTokenQuery 供无法设置请求头的 WebSocket 客户端使用
const accessTokenQuery = "access_token"

// ErrMissingAuthHeader 表示请求没有携带 Token
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件，用于验证 JWT token。
// 验证通过后把 user_id 和 email 写入上下文。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				abort(c, http.StatusUnauthorized, "Authorization header is required")
			} else {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				abort(c, http.StatusUnauthorized, "Invalid token format")
			}
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: Token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: Token signature is invalid")
				}
			}
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		// JWT 数字默认为 float64
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
			logrus.Errorf("Auth middleware: 'user_id' claim is not a valid positive integer number: %v", claims["user_id"])
			abort(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		email, ok := claims["email"].(string)
		if !ok || email == "" {
			logrus.Error("Auth middleware: 'email' claim missing in token")
			abort(c, http.StatusUnauthorized, "Invalid token claims")
			return
		}
		userID := uint(userIDFloat)

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextEmailKey, email)
		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// CurrentEmail 返回 Auth 中间件写入的邮箱
func CurrentEmail(c *gin.Context) (string, bool) {
	email := c.GetString(ContextEmailKey)
	return email, email != ""
}

// CurrentUserID 返回 Auth 中间件写入的用户 ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// extractToken 优先读取 Bearer 头，没有时回退到 access_token 查询参数
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query(accessTokenQuery); token != "" {
			return token, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}

// abort 以统一的响应格式终止请求
func abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"status": code, "message": message, "data": nil})
}
